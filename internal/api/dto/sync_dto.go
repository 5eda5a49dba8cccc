package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// Loose accepts any JSON scalar and keeps its text. Upstream payroll exports
// mix strings, numbers and booleans for the same field.
type Loose string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Loose) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*l = Loose(t)
	case json.Number:
		*l = Loose(t.String())
	case bool:
		*l = Loose(strconv.FormatBool(t))
	case nil:
		*l = ""
	default:
		return fmt.Errorf("expected a scalar, got %s", string(b))
	}
	return nil
}

func (l *Loose) text() *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

// EmployeeRecord is one employee as exported by the payroll system.
type EmployeeRecord struct {
	EmployeeNumber              *Loose            `json:"employeeNumber"`
	Name                        *Loose            `json:"name"`
	NameKana                    *Loose            `json:"nameKana"`
	Gender                      *Loose            `json:"gender"`
	BirthDate                   *Loose            `json:"birthDate"`
	Email                       *Loose            `json:"email"`
	PostalCode                  *Loose            `json:"postalCode"`
	Address                     *Loose            `json:"address"`
	AddressDetail               *Loose            `json:"addressDetail"`
	HireDate                    *Loose            `json:"hireDate"`
	ResignationDate             *Loose            `json:"resignationDate"`
	HealthStandardRemuneration  *Loose            `json:"healthStandardRemuneration"`
	PensionStandardRemuneration *Loose            `json:"pensionStandardRemuneration"`
	LeaveStatus                 *Loose            `json:"leaveStatus"`
	LeaveStartDate              *Loose            `json:"leaveStartDate"`
	LeaveEndDate                *Loose            `json:"leaveEndDate"`
	HealthInsuranceAcquired     *Loose            `json:"healthInsuranceAcquired"`
	PensionInsuranceAcquired    *Loose            `json:"pensionInsuranceAcquired"`
	EmploymentInsuranceAcquired *Loose            `json:"employmentInsuranceAcquired"`
	HasDependent                *Loose            `json:"hasDependent"`
	Dependents                  []DependentRecord `json:"dependents"`
	Payrolls                    []PayrollEntry    `json:"payrolls"`
}

// PayrollEntry carries a salary fact, a bonus fact, or both.
type PayrollEntry struct {
	YearMonth            *Loose `json:"yearMonth"`
	Amount               *Loose `json:"amount"`
	WorkedDays           *Loose `json:"workedDays"`
	BonusPaidOn          *Loose `json:"bonusPaidOn"`
	BonusTotal           *Loose `json:"bonusTotal"`
	StandardHealthBonus  *Loose `json:"standardHealthBonus"`
	StandardWelfareBonus *Loose `json:"standardWelfareBonus"`
	SourcePaymentID      *Loose `json:"sourcePaymentId"`
}

// DependentRecord is one dependent of an employee record.
type DependentRecord struct {
	Relationship  *Loose `json:"relationship"`
	KanjiName     *Loose `json:"kanjiName"`
	KanaName      *Loose `json:"kanaName"`
	Gender        *Loose `json:"gender"`
	BirthDate     *Loose `json:"birthDate"`
	AnnualIncome  *Loose `json:"annualIncome"`
	Address       *Loose `json:"address"`
	Cohabiting    *Loose `json:"cohabiting"`
	ThirdCategory *Loose `json:"thirdCategory"`
}

type syncEnvelope struct {
	Employees []EmployeeRecord `json:"employees"`
}

// ErrEmptyBody is returned for a request without content.
var ErrEmptyBody = errors.New("request body is empty")

// ParseSyncRequest accepts {"employees": [...]} or a bare array.
func ParseSyncRequest(body []byte) ([]EmployeeRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}
	if trimmed[0] == '[' {
		var records []EmployeeRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var env syncEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Employees == nil {
		return nil, errors.New(`"employees" array is required`)
	}
	return env.Employees, nil
}

// ToDomain converts the wire records, keeping absent and empty lists apart.
func ToDomain(records []EmployeeRecord) []domain.ExternalRecord {
	out := make([]domain.ExternalRecord, 0, len(records))
	for _, r := range records {
		rec := domain.ExternalRecord{
			EmployeeNumber:              r.EmployeeNumber.text(),
			Name:                        r.Name.text(),
			NameKana:                    r.NameKana.text(),
			Gender:                      r.Gender.text(),
			BirthDate:                   r.BirthDate.text(),
			Email:                       r.Email.text(),
			PostalCode:                  r.PostalCode.text(),
			Address:                     r.Address.text(),
			AddressDetail:               r.AddressDetail.text(),
			HireDate:                    r.HireDate.text(),
			ResignationDate:             r.ResignationDate.text(),
			HealthStandardRemuneration:  r.HealthStandardRemuneration.text(),
			PensionStandardRemuneration: r.PensionStandardRemuneration.text(),
			LeaveStatus:                 r.LeaveStatus.text(),
			LeaveStartDate:              r.LeaveStartDate.text(),
			LeaveEndDate:                r.LeaveEndDate.text(),
			HealthInsuranceAcquired:     r.HealthInsuranceAcquired.text(),
			PensionInsuranceAcquired:    r.PensionInsuranceAcquired.text(),
			EmploymentInsuranceAcquired: r.EmploymentInsuranceAcquired.text(),
			HasDependent:                r.HasDependent.text(),
		}
		if r.Dependents != nil {
			rec.Dependents = make([]domain.ExternalDependent, 0, len(r.Dependents))
			for _, d := range r.Dependents {
				rec.Dependents = append(rec.Dependents, domain.ExternalDependent{
					Relationship:  d.Relationship.text(),
					KanjiName:     d.KanjiName.text(),
					KanaName:      d.KanaName.text(),
					Gender:        d.Gender.text(),
					BirthDate:     d.BirthDate.text(),
					AnnualIncome:  d.AnnualIncome.text(),
					Address:       d.Address.text(),
					Cohabiting:    d.Cohabiting.text(),
					ThirdCategory: d.ThirdCategory.text(),
				})
			}
		}
		for _, p := range r.Payrolls {
			rec.Payrolls = append(rec.Payrolls, domain.ExternalPayroll{
				YearMonth:            p.YearMonth.text(),
				Amount:               p.Amount.text(),
				WorkedDays:           p.WorkedDays.text(),
				BonusPaidOn:          p.BonusPaidOn.text(),
				BonusTotal:           p.BonusTotal.text(),
				StandardHealthBonus:  p.StandardHealthBonus.text(),
				StandardWelfareBonus: p.StandardWelfareBonus.text(),
				SourcePaymentID:      p.SourcePaymentID.text(),
			})
		}
		out = append(out, rec)
	}
	return out
}

// SyncResponse is returned for a processed batch.
type SyncResponse struct {
	Success   bool                 `json:"success"`
	Total     int                  `json:"total"`
	Processed int                  `json:"processed"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Errors    []domain.RecordError `json:"errors"`
	HasErrors bool                 `json:"hasErrors"`
}

// NewSyncResponse maps a service result.
func NewSyncResponse(result *domain.SyncResult) SyncResponse {
	errs := result.Errors
	if errs == nil {
		errs = []domain.RecordError{}
	}
	return SyncResponse{
		Success:   true,
		Total:     result.Total,
		Processed: result.Processed,
		Created:   result.Created,
		Updated:   result.Updated,
		Errors:    errs,
		HasErrors: result.HasErrors,
	}
}

// SyncRunResponse is one entry of the sync run log.
type SyncRunResponse struct {
	ID        string               `json:"id"`
	Actor     string               `json:"actor"`
	StartedAt string               `json:"startedAt"`
	Total     int                  `json:"total"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Rejected  bool                 `json:"rejected"`
	Errors    []domain.RecordError `json:"errors"`
}
