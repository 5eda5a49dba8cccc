package service

import (
	"fmt"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
)

// findDuplicates reports every later occurrence of an employee number
// already seen earlier in the batch. Blank numbers are left to validation.
func findDuplicates(records []domain.ExternalRecord) []domain.RecordError {
	firstSeen := make(map[string]int, len(records))
	var dups []domain.RecordError
	for i, rec := range records {
		id := normalize.IdentifierPtr(rec.EmployeeNumber)
		if id == "" {
			continue
		}
		first, seen := firstSeen[id]
		if !seen {
			firstSeen[id] = i
			continue
		}
		dups = append(dups, domain.RecordError{
			Index:      i,
			Identifier: id,
			Message:    fmt.Sprintf("duplicate employee number in batch (first seen at index %d)", first),
		})
	}
	return dups
}
