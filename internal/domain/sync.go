package domain

import "time"

// RecordError reports a problem with one record of a batch.
type RecordError struct {
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// SyncResult summarizes one ingestion call.
type SyncResult struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Errors    []RecordError `json:"errors"`
	HasErrors bool          `json:"hasErrors"`

	// Rejected is set when a batch-level duplicate aborted all writes.
	Rejected bool `json:"rejected"`
	// ValidationErrors lists, for a rejected batch, the per-record
	// validation failures the batch would also have produced.
	ValidationErrors []RecordError `json:"validationErrors,omitempty"`
}

// SyncRun is the persisted log entry of one ingestion call.
type SyncRun struct {
	ID        string
	Actor     string
	StartedAt time.Time
	Total     int
	Created   int
	Updated   int
	Rejected  bool
	Errors    []RecordError
	CreatedAt time.Time
}
