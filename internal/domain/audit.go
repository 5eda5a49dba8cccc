package domain

import "time"

// AuditContext is captured once per ingestion call and stamped onto every
// write made on its behalf.
type AuditContext struct {
	Actor string
	At    time.Time
}

// NewAuditContext builds an audit context for actor at the given instant.
func NewAuditContext(actor string, at time.Time) AuditContext {
	if actor == "" {
		actor = "system"
	}
	return AuditContext{Actor: actor, At: at.UTC()}
}
