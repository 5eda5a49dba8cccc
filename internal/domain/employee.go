package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gender tokens produced by normalization.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Identity addresses an employee by normalized number and name.
type Identity struct {
	EmployeeNumber string
	Name           string
}

// Employee is the canonical stored projection of a payroll-system record.
// Optional fields are pointers; nil means "not supplied" and never
// overwrites a stored value on update.
type Employee struct {
	ID             string
	EmployeeNumber string
	Name           string
	NormalizedName string

	NameKana        *string
	Gender          *string
	BirthDate       *time.Time
	Email           *string
	PostalCode      *string
	Address         *string
	AddressDetail   *string
	HireDate        *time.Time
	ResignationDate *time.Time

	HealthStandardRemuneration  *decimal.Decimal
	PensionStandardRemuneration *decimal.Decimal

	LeaveStatus    *string
	LeaveStartDate *time.Time
	LeaveEndDate   *time.Time

	HealthInsuranceAcquired     *bool
	PensionInsuranceAcquired    *bool
	EmploymentInsuranceAcquired *bool
	HasDependent                *bool

	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// Identity returns the (number, name) pair of the employee.
func (e *Employee) Identity() Identity {
	return Identity{EmployeeNumber: e.EmployeeNumber, Name: e.NormalizedName}
}

// WriteKind enumerates upsert decisions.
type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
)

// EmployeeWrite is one decided mutation of the employee registry.
type EmployeeWrite struct {
	Kind     WriteKind
	Employee *Employee
}
