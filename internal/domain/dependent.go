package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dependent is a family member registered under an employee.
type Dependent struct {
	ID            string
	EmployeeID    string
	Relationship  *string
	KanjiName     *string
	KanaName      *string
	Gender        *string
	BirthDate     *time.Time
	AnnualIncome  *decimal.Decimal
	Address       *string
	Cohabiting    *bool
	ThirdCategory *bool
	CreatedAt     time.Time
	CreatedBy     string
}
