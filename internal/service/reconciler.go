package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/repository"
	"github.com/spec-kit/payroll-sync/internal/validation"
)

// Record rejection messages.
const (
	msgIdentityConflict    = "employee number already registered to a different employee"
	msgReservationConflict = "employee number is reserved by a pending new-hire request"
)

// plan is an accepted record together with its registry write.
type plan struct {
	index      int
	identifier string
	record     domain.ExternalRecord
	write      domain.EmployeeWrite
}

type reconciler struct {
	employees repository.EmployeeRepository
}

// reconcile decides what to do with one record. It returns either a plan or
// a record error; a non-nil error means the registry could not be read.
func (r *reconciler) reconcile(ctx context.Context, index int, rec domain.ExternalRecord, reserved map[string]struct{}, today time.Time) (*plan, *domain.RecordError, error) {
	identifier := identifierOf(rec)
	reject := func(msg string) (*plan, *domain.RecordError, error) {
		return nil, &domain.RecordError{Index: index, Identifier: identifier, Message: msg}, nil
	}

	if msg := validateRecord(rec, today); msg != "" {
		return reject(msg)
	}

	incoming := employeeFromRecord(rec)
	existing, err := r.employees.GetByNumber(ctx, identifier)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, held := reserved[identifier]; held {
			return reject(msgReservationConflict)
		}
		return &plan{index: index, identifier: identifier, record: rec,
			write: domain.EmployeeWrite{Kind: domain.WriteCreate, Employee: incoming}}, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("lookup employee %s: %w", identifier, err)
	}

	if existing.NormalizedName != incoming.NormalizedName {
		return reject(msgIdentityConflict)
	}

	match, err := r.employees.GetByIdentity(ctx, incoming.Identity())
	if err != nil {
		return nil, nil, fmt.Errorf("lookup employee %s by identity: %w", identifier, err)
	}
	incoming.ID = match.ID
	return &plan{index: index, identifier: identifier, record: rec,
		write: domain.EmployeeWrite{Kind: domain.WriteUpdate, Employee: incoming}}, nil, nil
}

// validateRecord returns the first problem that rejects rec, or "".
func validateRecord(rec domain.ExternalRecord, today time.Time) string {
	if msg := validation.Validate(rec, today); msg != validation.Valid {
		return msg
	}
	return checkPayrollMonths(rec.Payrolls)
}

func identifierOf(rec domain.ExternalRecord) string {
	return normalize.IdentifierPtr(rec.EmployeeNumber)
}

// checkPayrollMonths rejects salary facts whose month cannot be resolved.
func checkPayrollMonths(entries []domain.ExternalPayroll) string {
	for i, p := range entries {
		if !p.HasSalary() {
			continue
		}
		raw := normalize.Text(p.YearMonth)
		if raw == nil {
			return fmt.Sprintf("payrolls[%d]: yearMonth is required for salary data", i)
		}
		if _, ok := normalize.YearMonth(*raw); !ok {
			return fmt.Sprintf("payrolls[%d]: yearMonth %q is not a valid year-month", i, *raw)
		}
	}
	return ""
}

// employeeFromRecord converts a validated record into registry form.
func employeeFromRecord(rec domain.ExternalRecord) *domain.Employee {
	name := normalize.Text(rec.Name)
	e := &domain.Employee{
		EmployeeNumber:              normalize.IdentifierPtr(rec.EmployeeNumber),
		NormalizedName:              normalize.IdentifierPtr(rec.Name),
		NameKana:                    normalize.Text(rec.NameKana),
		Gender:                      normalize.GenderPtr(rec.Gender),
		Email:                       normalize.Text(rec.Email),
		PostalCode:                  normalize.Text(rec.PostalCode),
		Address:                     normalize.Text(rec.Address),
		AddressDetail:               normalize.Text(rec.AddressDetail),
		HealthStandardRemuneration:  normalize.Number(rec.HealthStandardRemuneration),
		PensionStandardRemuneration: normalize.Number(rec.PensionStandardRemuneration),
		LeaveStatus:                 normalize.Text(rec.LeaveStatus),
		HealthInsuranceAcquired:     normalize.OptionalBool(rec.HealthInsuranceAcquired),
		PensionInsuranceAcquired:    normalize.OptionalBool(rec.PensionInsuranceAcquired),
		EmploymentInsuranceAcquired: normalize.OptionalBool(rec.EmploymentInsuranceAcquired),
		HasDependent:                normalize.OptionalBool(rec.HasDependent),
	}
	if name != nil {
		e.Name = *name
	}
	e.BirthDate, _ = normalize.Date(rec.BirthDate)
	e.HireDate, _ = normalize.Date(rec.HireDate)
	e.ResignationDate, _ = normalize.Date(rec.ResignationDate)
	e.LeaveStartDate, _ = normalize.Date(rec.LeaveStartDate)
	e.LeaveEndDate, _ = normalize.Date(rec.LeaveEndDate)
	return e
}
