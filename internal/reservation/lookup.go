// Package reservation answers which employee numbers are held by pending
// new-hire approval requests.
package reservation

import (
	"context"

	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/repository"
)

// Lookup returns the normalized identifiers currently reserved. It is
// queried once per ingestion call.
type Lookup interface {
	PendingIdentifiers(ctx context.Context) (map[string]struct{}, error)
}

// RepositoryLookup reads reservations from the approval request table.
type RepositoryLookup struct {
	approvals repository.ApprovalRepository
}

// NewRepositoryLookup wraps an approval repository.
func NewRepositoryLookup(approvals repository.ApprovalRepository) *RepositoryLookup {
	return &RepositoryLookup{approvals: approvals}
}

func (l *RepositoryLookup) PendingIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	numbers, err := l.approvals.PendingNewHireNumbers(ctx)
	if err != nil {
		return nil, err
	}
	return toSet(numbers), nil
}

// Static is a fixed reservation set.
type Static []string

func (s Static) PendingIdentifiers(context.Context) (map[string]struct{}, error) {
	return toSet(s), nil
}

func toSet(numbers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if id := normalize.Identifier(n); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
