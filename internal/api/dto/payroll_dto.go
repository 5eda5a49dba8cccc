package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollMonthResponse is the monthly aggregate with its payments.
type PayrollMonthResponse struct {
	EmployeeNumber            string                 `json:"employeeNumber"`
	YearMonth                 string                 `json:"yearMonth"`
	Amount                    *decimal.Decimal       `json:"amount"`
	WorkedDays                *decimal.Decimal       `json:"workedDays"`
	BonusTotal                decimal.Decimal        `json:"bonusTotal"`
	StandardHealthBonusTotal  decimal.Decimal        `json:"standardHealthBonusTotal"`
	StandardWelfareBonusTotal decimal.Decimal        `json:"standardWelfareBonusTotal"`
	UpdatedAt                 time.Time              `json:"updatedAt"`
	UpdatedBy                 string                 `json:"updatedBy"`
	Bonuses                   []BonusPaymentResponse `json:"bonuses"`
}

// BonusPaymentResponse is one bonus payment.
type BonusPaymentResponse struct {
	ID                   string           `json:"id"`
	PaidOn               string           `json:"paidOn"`
	BonusTotal           *decimal.Decimal `json:"bonusTotal"`
	StandardHealthBonus  *decimal.Decimal `json:"standardHealthBonus"`
	StandardWelfareBonus *decimal.Decimal `json:"standardWelfareBonus"`
	SourcePaymentID      *string          `json:"sourcePaymentId"`
}

// DependentResponse is one registered dependent.
type DependentResponse struct {
	ID            string           `json:"id"`
	Relationship  *string          `json:"relationship"`
	KanjiName     *string          `json:"kanjiName"`
	KanaName      *string          `json:"kanaName"`
	Gender        *string          `json:"gender"`
	BirthDate     *string          `json:"birthDate"`
	AnnualIncome  *decimal.Decimal `json:"annualIncome"`
	Address       *string          `json:"address"`
	Cohabiting    *bool            `json:"cohabiting"`
	ThirdCategory *bool            `json:"thirdCategory"`
}
