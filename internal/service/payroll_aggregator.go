package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/repository"
)

// PayrollAggregator applies salary and bonus facts to monthly aggregates.
type PayrollAggregator struct {
	payrolls repository.PayrollRepository
	bonusID  bonusIDFunc
	logger   *zap.Logger
}

// NewPayrollAggregator constructs the aggregator.
func NewPayrollAggregator(payrolls repository.PayrollRepository, strategy config.BonusIDStrategy, logger *zap.Logger) *PayrollAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayrollAggregator{payrolls: payrolls, bonusID: bonusIDStrategy(strategy), logger: logger}
}

type salaryFact struct {
	yearMonth  string
	amount     *decimal.Decimal
	workedDays *decimal.Decimal
}

type bonusFact struct {
	paidOn          time.Time
	total           *decimal.Decimal
	standardHealth  *decimal.Decimal
	standardWelfare *decimal.Decimal
	sourceID        *string
}

// bonusClaims tracks the ids handed out during one call for one employee.
type bonusClaims struct {
	ids  map[string]struct{}
	seen map[string]int
}

func newBonusClaims() *bonusClaims {
	return &bonusClaims{ids: map[string]struct{}{}, seen: map[string]int{}}
}

// Apply processes the entries of one employee in order. Entries that cannot
// be applied are returned as messages; a returned error means storage failed.
func (a *PayrollAggregator) Apply(ctx context.Context, audit domain.AuditContext, employeeID string, entries []domain.ExternalPayroll) ([]string, error) {
	var rejected []string
	claims := newBonusClaims()

	for i, entry := range entries {
		if msg := checkFigures(entry); msg != "" {
			rejected = append(rejected, fmt.Sprintf("payrolls[%d]: %s", i, msg))
			continue
		}
		if entry.HasSalary() {
			if fact, ok := salaryFactOf(entry); ok {
				if err := a.applySalary(ctx, audit, employeeID, fact); err != nil {
					return rejected, fmt.Errorf("payrolls[%d]: %w", i, err)
				}
			}
		}
		if entry.HasBonus() {
			paidOn, ok := normalize.Date(entry.BonusPaidOn)
			if !ok || paidOn == nil {
				rejected = append(rejected, fmt.Sprintf("payrolls[%d]: bonus paid-on date is required to resolve the payroll month", i))
				continue
			}
			fact := bonusFact{
				paidOn:          *paidOn,
				total:           normalize.Number(entry.BonusTotal),
				standardHealth:  normalize.Number(entry.StandardHealthBonus),
				standardWelfare: normalize.Number(entry.StandardWelfareBonus),
				sourceID:        normalize.Text(entry.SourcePaymentID),
			}
			if err := a.applyBonus(ctx, audit, employeeID, fact, claims); err != nil {
				return rejected, fmt.Errorf("payrolls[%d]: %w", i, err)
			}
		}
	}
	return rejected, nil
}

// checkFigures names the first supplied figure of entry that is not numeric.
func checkFigures(entry domain.ExternalPayroll) string {
	figures := []struct {
		name  string
		value *string
	}{
		{"amount", entry.Amount},
		{"workedDays", entry.WorkedDays},
		{"bonusTotal", entry.BonusTotal},
		{"standardHealthBonus", entry.StandardHealthBonus},
		{"standardWelfareBonus", entry.StandardWelfareBonus},
	}
	for _, f := range figures {
		if !normalize.IsNumericOrAbsent(f.value) {
			return f.name + " must be numeric"
		}
	}
	return ""
}

func salaryFactOf(entry domain.ExternalPayroll) (salaryFact, bool) {
	ym, ok := normalize.YearMonth(normalize.IdentifierPtr(entry.YearMonth))
	if !ok {
		return salaryFact{}, false
	}
	fact := salaryFact{
		yearMonth:  ym,
		amount:     normalize.Number(entry.Amount),
		workedDays: normalize.Number(entry.WorkedDays),
	}
	return fact, fact.amount != nil || fact.workedDays != nil
}

// applySalary overwrites amount and worked days; bonus totals are untouched.
func (a *PayrollAggregator) applySalary(ctx context.Context, audit domain.AuditContext, employeeID string, fact salaryFact) error {
	return a.payrolls.InMonth(ctx, employeeID, fact.yearMonth, func(ctx context.Context, tx repository.PayrollMonthTx) error {
		month, err := tx.Month(ctx)
		if err != nil {
			return err
		}
		if month == nil {
			month = &domain.PayrollMonth{}
		}
		if fact.amount != nil {
			month.Amount = fact.amount
		}
		if fact.workedDays != nil {
			month.WorkedDays = fact.workedDays
		}
		return tx.SaveMonth(ctx, audit, month)
	})
}

func (a *PayrollAggregator) applyBonus(ctx context.Context, audit domain.AuditContext, employeeID string, fact bonusFact, claims *bonusClaims) error {
	amount := decimal.Zero
	if fact.total != nil {
		amount = *fact.total
	}
	contentKey := normalize.DateKey(fact.paidOn) + "|" + amount.String()

	yearMonth := normalize.YearMonthOf(fact.paidOn)
	var carried *domain.BonusPayment
	if fact.sourceID != nil {
		moved, err := a.detachElsewhere(ctx, audit, employeeID, yearMonth, *fact.sourceID)
		if err != nil {
			return err
		}
		carried = moved
	}

	var assigned string
	err := a.payrolls.InMonth(ctx, employeeID, yearMonth, func(ctx context.Context, tx repository.PayrollMonthTx) error {
		month, err := tx.Month(ctx)
		if err != nil {
			return err
		}
		if month == nil {
			month = &domain.PayrollMonth{}
		}

		id := ""
		if fact.sourceID != nil {
			id = *fact.sourceID
		} else {
			existing, err := tx.BonusIDs(ctx)
			if err != nil {
				return err
			}
			id = a.bonusID(bonusIDRequest{
				EmployeeID: employeeID,
				PaidOn:     fact.paidOn,
				Amount:     amount,
				Existing:   existing,
				Claimed:    claims.ids,
				Occurrence: claims.seen[contentKey],
			})
		}

		prior, err := tx.Bonus(ctx, id)
		if err != nil {
			return err
		}
		base := prior
		if base == nil && carried != nil && carried.ID == id {
			base = carried
		}
		next := mergeBonus(base, id, fact)
		month.Apply(prior.Contribution(), next.Contribution())

		if err := tx.SaveBonus(ctx, audit, next); err != nil {
			return err
		}
		if err := tx.SaveMonth(ctx, audit, month); err != nil {
			return err
		}
		assigned = id
		return nil
	})
	if err != nil {
		return err
	}

	claims.ids[assigned] = struct{}{}
	claims.seen[contentKey]++
	a.logger.Debug("bonus payment applied",
		zap.String("employee_id", employeeID),
		zap.String("bonus_id", assigned))
	return nil
}

// detachElsewhere removes an upstream-identified payment from any month other
// than yearMonth and takes its contribution out of that month's totals. It
// returns the last detached payment so unsupplied fields survive the move.
func (a *PayrollAggregator) detachElsewhere(ctx context.Context, audit domain.AuditContext, employeeID, yearMonth, id string) (*domain.BonusPayment, error) {
	months, err := a.payrolls.BonusMonths(ctx, employeeID, id)
	if err != nil {
		return nil, err
	}
	var carried *domain.BonusPayment
	for _, ym := range months {
		if ym == yearMonth {
			continue
		}
		err := a.payrolls.InMonth(ctx, employeeID, ym, func(ctx context.Context, tx repository.PayrollMonthTx) error {
			prior, err := tx.Bonus(ctx, id)
			if err != nil || prior == nil {
				return err
			}
			month, err := tx.Month(ctx)
			if err != nil {
				return err
			}
			if month == nil {
				month = &domain.PayrollMonth{}
			}
			month.Apply(prior.Contribution(), domain.Contribution{})
			if err := tx.DeleteBonus(ctx, id); err != nil {
				return err
			}
			if err := tx.SaveMonth(ctx, audit, month); err != nil {
				return err
			}
			carried = prior
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("move bonus %s out of %s: %w", id, ym, err)
		}
		a.logger.Info("bonus payment moved",
			zap.String("employee_id", employeeID),
			zap.String("bonus_id", id),
			zap.String("from", ym),
			zap.String("to", yearMonth))
	}
	return carried, nil
}

// mergeBonus overlays the supplied fields of fact onto the stored payment.
func mergeBonus(prior *domain.BonusPayment, id string, fact bonusFact) *domain.BonusPayment {
	next := &domain.BonusPayment{ID: id}
	if prior != nil {
		*next = *prior
	}
	next.PaidOn = fact.paidOn
	if fact.total != nil {
		next.BonusTotal = fact.total
	}
	if fact.standardHealth != nil {
		next.StandardHealthBonus = fact.standardHealth
	}
	if fact.standardWelfare != nil {
		next.StandardWelfareBonus = fact.standardWelfare
	}
	if fact.sourceID != nil {
		next.SourcePaymentID = fact.sourceID
	}
	return next
}
