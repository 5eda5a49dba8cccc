// Package validation checks one external employee record against the
// ingestion business rules.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
)

// Valid is returned when a record passes every rule.
const Valid = "valid"

// MaxAddressLength bounds free-text address fields, counted in characters.
const MaxAddressLength = 80

var postalCode = regexp.MustCompile(`^\d{3}-?\d{4}$`)

// noLeave lists the leave-status tokens meaning "not on leave".
var noLeave = map[string]bool{"none": true, "なし": true, "無し": true}

// Validate returns Valid or the message of the first rule rec violates.
// today is truncated to a date before comparison.
func Validate(rec domain.ExternalRecord, today time.Time) string {
	today = normalize.DateOnly(today)

	if normalize.IdentifierPtr(rec.EmployeeNumber) == "" {
		return "employee number is required"
	}
	if normalize.IdentifierPtr(rec.Name) == "" {
		return "name is required"
	}
	if msg := checkPastDate(rec.BirthDate, today, "birth date"); msg != "" {
		return msg
	}
	if !normalize.IsNumericOrAbsent(rec.HealthStandardRemuneration) {
		return "health standard remuneration must be numeric"
	}
	if !normalize.IsNumericOrAbsent(rec.PensionStandardRemuneration) {
		return "pension standard remuneration must be numeric"
	}
	if pc := normalize.Text(rec.PostalCode); pc != nil && !postalCode.MatchString(*pc) {
		return "postal code must be 7 digits (e.g. 123-4567)"
	}
	if tooLong(rec.Address) || tooLong(rec.AddressDetail) {
		return fmt.Sprintf("address must be at most %d characters", MaxAddressLength)
	}
	if msg := checkLeave(rec); msg != "" {
		return msg
	}

	hasDependent := normalize.Bool(rec.HasDependent)
	if hasDependent && len(rec.Dependents) == 0 {
		return "at least one dependent is required when hasDependent is set"
	}
	for i, dep := range rec.Dependents {
		if msg := checkDependent(dep, hasDependent, today); msg != "" {
			return fmt.Sprintf("dependents[%d]: %s", i, msg)
		}
	}
	return Valid
}

func checkLeave(rec domain.ExternalRecord) string {
	start, startOK := normalize.Date(rec.LeaveStartDate)
	end, endOK := normalize.Date(rec.LeaveEndDate)
	if !startOK {
		return "leave start date is not a valid date"
	}
	if !endOK {
		return "leave end date is not a valid date"
	}
	if start == nil && end == nil {
		return ""
	}
	status := normalize.Text(rec.LeaveStatus)
	if status == nil || noLeave[strings.ToLower(normalize.Identifier(*status))] {
		return "leave dates require a leave status"
	}
	if start != nil && end != nil && end.Before(*start) {
		return "leave end date must not precede leave start date"
	}
	return ""
}

func checkDependent(dep domain.ExternalDependent, hasDependent bool, today time.Time) string {
	if hasDependent {
		if normalize.Text(dep.Relationship) == nil {
			return "relationship is required"
		}
		if normalize.Text(dep.KanjiName) == nil {
			return "name is required"
		}
	}
	if msg := checkPastDate(dep.BirthDate, today, "birth date"); msg != "" {
		return msg
	}
	if !normalize.IsNumericOrAbsent(dep.AnnualIncome) {
		return "annual income must be numeric"
	}
	if tooLong(dep.Address) {
		return fmt.Sprintf("address must be at most %d characters", MaxAddressLength)
	}
	return ""
}

func checkPastDate(raw *string, today time.Time, field string) string {
	d, ok := normalize.Date(raw)
	if !ok {
		return field + " is not a valid date"
	}
	if d != nil && d.After(today) {
		return field + " must not be in the future"
	}
	return ""
}

func tooLong(s *string) bool {
	t := normalize.Text(s)
	return t != nil && utf8.RuneCountInString(*t) > MaxAddressLength
}
