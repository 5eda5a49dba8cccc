package service

import (
	"context"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/repository"
)

// DependentReplacer swaps an employee's dependent set for the one carried by
// the latest record.
type DependentReplacer struct {
	dependents repository.DependentRepository
}

// NewDependentReplacer constructs the replacer.
func NewDependentReplacer(dependents repository.DependentRepository) *DependentReplacer {
	return &DependentReplacer{dependents: dependents}
}

// Applies reports whether rec asks for its dependents to be replaced: it
// carries a dependent list, or the presence flag is explicitly false.
func (r *DependentReplacer) Applies(rec domain.ExternalRecord) bool {
	if rec.Dependents != nil {
		return true
	}
	flag := normalize.OptionalBool(rec.HasDependent)
	return flag != nil && !*flag
}

// Replace clears the employee's dependents and, when the presence flag is
// set, registers the supplied ones. Both happen in one transaction.
func (r *DependentReplacer) Replace(ctx context.Context, audit domain.AuditContext, employeeID string, rec domain.ExternalRecord) error {
	var next []domain.Dependent
	if normalize.Bool(rec.HasDependent) {
		next = make([]domain.Dependent, 0, len(rec.Dependents))
		for _, d := range rec.Dependents {
			next = append(next, dependentFromExternal(d))
		}
	}
	return r.dependents.Replace(ctx, audit, employeeID, next)
}

func dependentFromExternal(d domain.ExternalDependent) domain.Dependent {
	birth, _ := normalize.Date(d.BirthDate)
	return domain.Dependent{
		Relationship:  normalize.Text(d.Relationship),
		KanjiName:     normalize.Text(d.KanjiName),
		KanaName:      normalize.Text(d.KanaName),
		Gender:        normalize.GenderPtr(d.Gender),
		BirthDate:     birth,
		AnnualIncome:  normalize.Number(d.AnnualIncome),
		Address:       normalize.Text(d.Address),
		Cohabiting:    normalize.OptionalBool(d.Cohabiting),
		ThirdCategory: normalize.TriState(d.ThirdCategory),
	}
}
