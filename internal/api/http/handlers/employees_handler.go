package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/payroll-sync/internal/api/dto"
	"github.com/spec-kit/payroll-sync/internal/service"
)

// EmployeesHandler serves read-only views of ingested data.
type EmployeesHandler struct {
	service *service.QueryService
}

// NewEmployeesHandler constructs handler.
func NewEmployeesHandler(queryService *service.QueryService) *EmployeesHandler {
	return &EmployeesHandler{service: queryService}
}

// PayrollMonth GET /api/v1/employees/:number/payrolls/:yearMonth.
func (h *EmployeesHandler) PayrollMonth(c *fiber.Ctx) error {
	view, err := h.service.PayrollMonth(c.UserContext(), c.Params("number"), c.Params("yearMonth"))
	if err != nil {
		return err
	}

	bonuses := make([]dto.BonusPaymentResponse, 0, len(view.Bonuses))
	for _, b := range view.Bonuses {
		bonuses = append(bonuses, dto.BonusPaymentResponse{
			ID:                   b.ID,
			PaidOn:               b.PaidOn.Format("2006-01-02"),
			BonusTotal:           b.BonusTotal,
			StandardHealthBonus:  b.StandardHealthBonus,
			StandardWelfareBonus: b.StandardWelfareBonus,
			SourcePaymentID:      b.SourcePaymentID,
		})
	}
	m := view.Month
	return c.JSON(fiber.Map{"data": dto.PayrollMonthResponse{
		EmployeeNumber:            view.Employee.EmployeeNumber,
		YearMonth:                 m.YearMonth,
		Amount:                    m.Amount,
		WorkedDays:                m.WorkedDays,
		BonusTotal:                m.BonusTotal,
		StandardHealthBonusTotal:  m.StandardHealthBonusTotal,
		StandardWelfareBonusTotal: m.StandardWelfareBonusTotal,
		UpdatedAt:                 m.UpdatedAt,
		UpdatedBy:                 m.UpdatedBy,
		Bonuses:                   bonuses,
	}})
}

// Dependents GET /api/v1/employees/:number/dependents.
func (h *EmployeesHandler) Dependents(c *fiber.Ctx) error {
	_, deps, err := h.service.Dependents(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	items := make([]dto.DependentResponse, 0, len(deps))
	for _, d := range deps {
		item := dto.DependentResponse{
			ID:            d.ID,
			Relationship:  d.Relationship,
			KanjiName:     d.KanjiName,
			KanaName:      d.KanaName,
			Gender:        d.Gender,
			AnnualIncome:  d.AnnualIncome,
			Address:       d.Address,
			Cohabiting:    d.Cohabiting,
			ThirdCategory: d.ThirdCategory,
		}
		if d.BirthDate != nil {
			s := d.BirthDate.Format("2006-01-02")
			item.BirthDate = &s
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{"data": items})
}
