package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEmployeeCreated EventType = "employee_created"
	EventEmployeeUpdated EventType = "employee_updated"
	EventSyncCompleted   EventType = "sync_completed"
	EventSyncRejected    EventType = "sync_rejected"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	EmployeeID string      `json:"employee_id,omitempty"`
	Actor      string      `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// EmployeeChangedPayload payload.
type EmployeeChangedPayload struct {
	EmployeeNumber string `json:"employee_number"`
	Name           string `json:"name"`
}

// SyncSummaryPayload payload.
type SyncSummaryPayload struct {
	RunID      string `json:"run_id,omitempty"`
	Total      int    `json:"total"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	ErrorCount int    `json:"error_count"`
}
