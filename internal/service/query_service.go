package service

import (
	"context"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/repository"
	apperrors "github.com/spec-kit/payroll-sync/pkg/util"
)

// QueryService serves read-only views used to check ingestion results.
type QueryService struct {
	employees  repository.EmployeeRepository
	payrolls   repository.PayrollRepository
	dependents repository.DependentRepository
}

// NewQueryService constructs the service.
func NewQueryService(deps Dependencies) *QueryService {
	return &QueryService{
		employees:  deps.EmployeeRepo,
		payrolls:   deps.PayrollRepo,
		dependents: deps.DependentRepo,
	}
}

// PayrollMonthView is a monthly aggregate with its bonus payments.
type PayrollMonthView struct {
	Employee *domain.Employee
	Month    *domain.PayrollMonth
	Bonuses  []domain.BonusPayment
}

// PayrollMonth loads the aggregate of one employee and month.
func (s *QueryService) PayrollMonth(ctx context.Context, employeeNumber, yearMonth string) (*PayrollMonthView, error) {
	ym, ok := normalize.YearMonth(yearMonth)
	if !ok {
		return nil, apperrors.NewValidationError("invalid year-month", map[string]any{"yearMonth": yearMonth})
	}
	employee, err := s.lookup(ctx, employeeNumber)
	if err != nil {
		return nil, err
	}
	month, bonuses, err := s.payrolls.GetMonth(ctx, employee.ID, ym)
	if err != nil {
		if de := apperrors.ToDomainError(err); de.Code == apperrors.CodeNotFound {
			return nil, apperrors.NewNotFound("payroll month", map[string]any{"employeeNumber": employee.EmployeeNumber, "yearMonth": ym})
		}
		return nil, apperrors.MapError(err)
	}
	if bonuses == nil {
		bonuses = []domain.BonusPayment{}
	}
	return &PayrollMonthView{Employee: employee, Month: month, Bonuses: bonuses}, nil
}

// Dependents lists the dependents registered under an employee.
func (s *QueryService) Dependents(ctx context.Context, employeeNumber string) (*domain.Employee, []domain.Dependent, error) {
	employee, err := s.lookup(ctx, employeeNumber)
	if err != nil {
		return nil, nil, err
	}
	deps, err := s.dependents.ListByEmployee(ctx, employee.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if deps == nil {
		deps = []domain.Dependent{}
	}
	return employee, deps, nil
}

func (s *QueryService) lookup(ctx context.Context, employeeNumber string) (*domain.Employee, error) {
	number := normalize.Identifier(employeeNumber)
	employee, err := s.employees.GetByNumber(ctx, number)
	if err != nil {
		if de := apperrors.ToDomainError(err); de.Code == apperrors.CodeNotFound {
			return nil, apperrors.NewNotFound("employee", map[string]any{"employeeNumber": number})
		}
		return nil, apperrors.MapError(err)
	}
	return employee, nil
}
