package domain

// ExternalRecord is one employee record as received from the payroll system.
// Loosely typed values are kept as raw text so that validation can report on
// them before conversion.
type ExternalRecord struct {
	EmployeeNumber  *string
	Name            *string
	NameKana        *string
	Gender          *string
	BirthDate       *string
	Email           *string
	PostalCode      *string
	Address         *string
	AddressDetail   *string
	HireDate        *string
	ResignationDate *string

	HealthStandardRemuneration  *string
	PensionStandardRemuneration *string

	LeaveStatus    *string
	LeaveStartDate *string
	LeaveEndDate   *string

	HealthInsuranceAcquired     *string
	PensionInsuranceAcquired    *string
	EmploymentInsuranceAcquired *string

	HasDependent *string
	Dependents   []ExternalDependent
	Payrolls     []ExternalPayroll
}

// ExternalPayroll carries a monthly salary fact, a bonus fact, or both.
type ExternalPayroll struct {
	YearMonth            *string
	Amount               *string
	WorkedDays           *string
	BonusPaidOn          *string
	BonusTotal           *string
	StandardHealthBonus  *string
	StandardWelfareBonus *string
	SourcePaymentID      *string
}

// HasSalary reports whether the entry carries a monthly salary fact.
func (p ExternalPayroll) HasSalary() bool {
	return present(p.Amount) || present(p.WorkedDays)
}

// HasBonus reports whether the entry carries a bonus fact.
func (p ExternalPayroll) HasBonus() bool {
	return present(p.BonusPaidOn) || present(p.BonusTotal)
}

// ExternalDependent is one dependent entry of an external record.
type ExternalDependent struct {
	Relationship  *string
	KanjiName     *string
	KanaName      *string
	Gender        *string
	BirthDate     *string
	AnnualIncome  *string
	Address       *string
	Cohabiting    *string
	ThirdCategory *string
}

func present(s *string) bool {
	if s == nil {
		return false
	}
	for _, r := range *s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' && r != '　' {
			return true
		}
	}
	return false
}
