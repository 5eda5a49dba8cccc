package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollMonth is the per-employee, per-month aggregate. Amount and
// WorkedDays hold the last written salary fact; the three totals are the
// sums over the month's bonus payments.
type PayrollMonth struct {
	EmployeeID string
	YearMonth  string

	Amount     *decimal.Decimal
	WorkedDays *decimal.Decimal

	BonusTotal                decimal.Decimal
	StandardHealthBonusTotal  decimal.Decimal
	StandardWelfareBonusTotal decimal.Decimal

	UpdatedAt time.Time
	UpdatedBy string
}

// BonusPayment is one disbursement within a PayrollMonth.
type BonusPayment struct {
	ID         string
	EmployeeID string
	YearMonth  string

	PaidOn               time.Time
	BonusTotal           *decimal.Decimal
	StandardHealthBonus  *decimal.Decimal
	StandardWelfareBonus *decimal.Decimal
	SourcePaymentID      *string

	UpdatedAt time.Time
	UpdatedBy string
}

// Contribution is what a bonus payment adds to its month's totals.
type Contribution struct {
	BonusTotal           decimal.Decimal
	StandardHealthBonus  decimal.Decimal
	StandardWelfareBonus decimal.Decimal
}

// Contribution returns the payment's share of the monthly totals; absent
// amounts contribute zero.
func (b *BonusPayment) Contribution() Contribution {
	if b == nil {
		return Contribution{}
	}
	return Contribution{
		BonusTotal:           orZero(b.BonusTotal),
		StandardHealthBonus:  orZero(b.StandardHealthBonus),
		StandardWelfareBonus: orZero(b.StandardWelfareBonus),
	}
}

// Apply replaces a previous contribution with a new one.
func (m *PayrollMonth) Apply(previous, next Contribution) {
	m.BonusTotal = m.BonusTotal.Sub(previous.BonusTotal).Add(next.BonusTotal)
	m.StandardHealthBonusTotal = m.StandardHealthBonusTotal.Sub(previous.StandardHealthBonus).Add(next.StandardHealthBonus)
	m.StandardWelfareBonusTotal = m.StandardWelfareBonusTotal.Sub(previous.StandardWelfareBonus).Add(next.StandardWelfareBonus)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
