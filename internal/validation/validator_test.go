package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

func ptr(s string) *string { return &s }

var today = time.Date(2025, time.July, 1, 15, 30, 0, 0, time.UTC)

func baseRecord() domain.ExternalRecord {
	return domain.ExternalRecord{
		EmployeeNumber: ptr("E001"),
		Name:           ptr("Taro Yamada"),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.ExternalRecord)
		want   string
	}{
		{"minimal record", func(r *domain.ExternalRecord) {}, Valid},
		{"missing number", func(r *domain.ExternalRecord) { r.EmployeeNumber = nil }, "employee number is required"},
		{"blank number", func(r *domain.ExternalRecord) { r.EmployeeNumber = ptr(" 　") }, "employee number is required"},
		{"blank name", func(r *domain.ExternalRecord) { r.Name = ptr("\t") }, "name is required"},
		{"number checked before name", func(r *domain.ExternalRecord) { r.EmployeeNumber = nil; r.Name = nil }, "employee number is required"},
		{"birth date today allowed", func(r *domain.ExternalRecord) { r.BirthDate = ptr("2025-07-01") }, Valid},
		{"future birth date", func(r *domain.ExternalRecord) { r.BirthDate = ptr("2025-07-02") }, "birth date must not be in the future"},
		{"unparseable birth date", func(r *domain.ExternalRecord) { r.BirthDate = ptr("someday") }, "birth date is not a valid date"},
		{"non numeric remuneration", func(r *domain.ExternalRecord) { r.HealthStandardRemuneration = ptr("abc") }, "health standard remuneration must be numeric"},
		{"numeric remuneration", func(r *domain.ExternalRecord) { r.PensionStandardRemuneration = ptr("300,000") }, Valid},
		{"postal hyphenated", func(r *domain.ExternalRecord) { r.PostalCode = ptr("123-4567") }, Valid},
		{"postal compact", func(r *domain.ExternalRecord) { r.PostalCode = ptr("1234567") }, Valid},
		{"postal bad", func(r *domain.ExternalRecord) { r.PostalCode = ptr("12-34567") }, "postal code must be 7 digits (e.g. 123-4567)"},
		{"address too long", func(r *domain.ExternalRecord) { r.Address = ptr(strings.Repeat("東", 81)) }, "address must be at most 80 characters"},
		{"address at limit", func(r *domain.ExternalRecord) { r.Address = ptr(strings.Repeat("東", 80)) }, Valid},
		{"leave dates without status", func(r *domain.ExternalRecord) { r.LeaveStartDate = ptr("2025-01-01") }, "leave dates require a leave status"},
		{"leave dates with none status", func(r *domain.ExternalRecord) {
			r.LeaveStatus = ptr("none")
			r.LeaveStartDate = ptr("2025-01-01")
		}, "leave dates require a leave status"},
		{"leave end before start", func(r *domain.ExternalRecord) {
			r.LeaveStatus = ptr("childcare")
			r.LeaveStartDate = ptr("2025-03-01")
			r.LeaveEndDate = ptr("2025-02-01")
		}, "leave end date must not precede leave start date"},
		{"leave ok", func(r *domain.ExternalRecord) {
			r.LeaveStatus = ptr("childcare")
			r.LeaveStartDate = ptr("2025-03-01")
			r.LeaveEndDate = ptr("2025-03-01")
		}, Valid},
		{"dependent flag without dependents", func(r *domain.ExternalRecord) { r.HasDependent = ptr("yes") }, "at least one dependent is required when hasDependent is set"},
		{"dependent missing relationship", func(r *domain.ExternalRecord) {
			r.HasDependent = ptr("1")
			r.Dependents = []domain.ExternalDependent{{KanjiName: ptr("山田花子")}}
		}, "dependents[0]: relationship is required"},
		{"dependent missing name", func(r *domain.ExternalRecord) {
			r.HasDependent = ptr("true")
			r.Dependents = []domain.ExternalDependent{{Relationship: ptr("spouse")}}
		}, "dependents[0]: name is required"},
		{"dependent names not required without flag", func(r *domain.ExternalRecord) {
			r.Dependents = []domain.ExternalDependent{{}}
		}, Valid},
		{"dependent future birth", func(r *domain.ExternalRecord) {
			r.HasDependent = ptr("on")
			r.Dependents = []domain.ExternalDependent{
				{Relationship: ptr("spouse"), KanjiName: ptr("山田花子")},
				{Relationship: ptr("child"), KanjiName: ptr("山田一郎"), BirthDate: ptr("2030-01-01")},
			}
		}, "dependents[1]: birth date must not be in the future"},
		{"dependent income not numeric", func(r *domain.ExternalRecord) {
			r.HasDependent = ptr("on")
			r.Dependents = []domain.ExternalDependent{{Relationship: ptr("spouse"), KanjiName: ptr("山田花子"), AnnualIncome: ptr("n/a")}}
		}, "dependents[0]: annual income must be numeric"},
		{"dependent address too long", func(r *domain.ExternalRecord) {
			r.HasDependent = ptr("on")
			r.Dependents = []domain.ExternalDependent{{Relationship: ptr("spouse"), KanjiName: ptr("山田花子"), Address: ptr(strings.Repeat("a", 81))}}
		}, "dependents[0]: address must be at most 80 characters"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := baseRecord()
			tc.mutate(&rec)
			assert.Equal(t, tc.want, Validate(rec, today))
		})
	}
}
