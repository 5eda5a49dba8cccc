package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// PayrollRepository persists monthly aggregates and bonus payments.
type PayrollRepository interface {
	// InMonth runs fn in one serializable transaction scoped to the
	// (employeeID, yearMonth) aggregate. fn may be invoked again when the
	// transaction loses a serialization race.
	InMonth(ctx context.Context, employeeID, yearMonth string, fn func(ctx context.Context, tx PayrollMonthTx) error) error
	// GetMonth returns the aggregate and its payments, pgx.ErrNoRows if the
	// month was never written.
	GetMonth(ctx context.Context, employeeID, yearMonth string) (*domain.PayrollMonth, []domain.BonusPayment, error)
	// BonusMonths lists the months holding a payment with the given id.
	BonusMonths(ctx context.Context, employeeID, bonusID string) ([]string, error)
}

// PayrollMonthTx is the view of one month inside an InMonth transaction.
// Getters return nil without error for rows that do not exist yet.
type PayrollMonthTx interface {
	Month(ctx context.Context) (*domain.PayrollMonth, error)
	BonusIDs(ctx context.Context) ([]string, error)
	Bonus(ctx context.Context, id string) (*domain.BonusPayment, error)
	SaveMonth(ctx context.Context, audit domain.AuditContext, month *domain.PayrollMonth) error
	SaveBonus(ctx context.Context, audit domain.AuditContext, bonus *domain.BonusPayment) error
	DeleteBonus(ctx context.Context, id string) error
}

type payrollRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewPayrollRepository instantiates the repository.
func NewPayrollRepository(pool *pgxpool.Pool, tx *TxRunner) PayrollRepository {
	return &payrollRepository{pool: pool, tx: tx}
}

func (r *payrollRepository) InMonth(ctx context.Context, employeeID, yearMonth string, fn func(context.Context, PayrollMonthTx) error) error {
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &payrollMonthTx{tx: tx, employeeID: employeeID, yearMonth: yearMonth})
	})
}

func (r *payrollRepository) GetMonth(ctx context.Context, employeeID, yearMonth string) (*domain.PayrollMonth, []domain.BonusPayment, error) {
	month, err := scanMonth(r.pool.QueryRow(ctx, `SELECT`+monthColumns+` FROM payroll_months WHERE employee_id=$1 AND year_month=$2`,
		employeeID, yearMonth))
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT`+bonusColumns+` FROM bonus_payments
        WHERE employee_id=$1 AND year_month=$2 ORDER BY paid_on ASC, id ASC`, employeeID, yearMonth)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var bonuses []domain.BonusPayment
	for rows.Next() {
		bonus, err := scanBonus(rows)
		if err != nil {
			return nil, nil, err
		}
		bonuses = append(bonuses, *bonus)
	}
	return month, bonuses, rows.Err()
}

func (r *payrollRepository) BonusMonths(ctx context.Context, employeeID, bonusID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT year_month FROM bonus_payments
        WHERE employee_id=$1 AND id=$2 ORDER BY year_month ASC`, employeeID, bonusID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type payrollMonthTx struct {
	tx         pgx.Tx
	employeeID string
	yearMonth  string
}

func (t *payrollMonthTx) Month(ctx context.Context) (*domain.PayrollMonth, error) {
	month, err := scanMonth(t.tx.QueryRow(ctx, `SELECT`+monthColumns+` FROM payroll_months
        WHERE employee_id=$1 AND year_month=$2 FOR UPDATE`, t.employeeID, t.yearMonth))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return month, err
}

func (t *payrollMonthTx) BonusIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM bonus_payments
        WHERE employee_id=$1 AND year_month=$2 ORDER BY id ASC`, t.employeeID, t.yearMonth)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *payrollMonthTx) Bonus(ctx context.Context, id string) (*domain.BonusPayment, error) {
	bonus, err := scanBonus(t.tx.QueryRow(ctx, `SELECT`+bonusColumns+` FROM bonus_payments
        WHERE employee_id=$1 AND year_month=$2 AND id=$3`, t.employeeID, t.yearMonth, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return bonus, err
}

func (t *payrollMonthTx) SaveMonth(ctx context.Context, audit domain.AuditContext, month *domain.PayrollMonth) error {
	const query = `
        INSERT INTO payroll_months (employee_id, year_month, amount, worked_days,
            bonus_total, standard_health_bonus_total, standard_welfare_bonus_total, updated_at, updated_by)
        VALUES ($1,$2,$3::text::numeric,$4::text::numeric,$5::text::numeric,$6::text::numeric,$7::text::numeric,$8,$9)
        ON CONFLICT (employee_id, year_month) DO UPDATE SET
            amount=COALESCE(EXCLUDED.amount, payroll_months.amount),
            worked_days=COALESCE(EXCLUDED.worked_days, payroll_months.worked_days),
            bonus_total=EXCLUDED.bonus_total,
            standard_health_bonus_total=EXCLUDED.standard_health_bonus_total,
            standard_welfare_bonus_total=EXCLUDED.standard_welfare_bonus_total,
            updated_at=EXCLUDED.updated_at,
            updated_by=EXCLUDED.updated_by`

	month.EmployeeID, month.YearMonth = t.employeeID, t.yearMonth
	month.UpdatedAt, month.UpdatedBy = audit.At, audit.Actor
	_, err := t.tx.Exec(ctx, query,
		t.employeeID,
		t.yearMonth,
		numericArg(month.Amount),
		numericArg(month.WorkedDays),
		month.BonusTotal.String(),
		month.StandardHealthBonusTotal.String(),
		month.StandardWelfareBonusTotal.String(),
		audit.At,
		audit.Actor,
	)
	return err
}

func (t *payrollMonthTx) SaveBonus(ctx context.Context, audit domain.AuditContext, bonus *domain.BonusPayment) error {
	const query = `
        INSERT INTO bonus_payments (employee_id, year_month, id, paid_on, bonus_total,
            standard_health_bonus, standard_welfare_bonus, source_payment_id, updated_at, updated_by)
        VALUES ($1,$2,$3,$4,$5::text::numeric,$6::text::numeric,$7::text::numeric,$8,$9,$10)
        ON CONFLICT (employee_id, year_month, id) DO UPDATE SET
            paid_on=EXCLUDED.paid_on,
            bonus_total=COALESCE(EXCLUDED.bonus_total, bonus_payments.bonus_total),
            standard_health_bonus=COALESCE(EXCLUDED.standard_health_bonus, bonus_payments.standard_health_bonus),
            standard_welfare_bonus=COALESCE(EXCLUDED.standard_welfare_bonus, bonus_payments.standard_welfare_bonus),
            source_payment_id=COALESCE(EXCLUDED.source_payment_id, bonus_payments.source_payment_id),
            updated_at=EXCLUDED.updated_at,
            updated_by=EXCLUDED.updated_by`

	bonus.EmployeeID, bonus.YearMonth = t.employeeID, t.yearMonth
	bonus.UpdatedAt, bonus.UpdatedBy = audit.At, audit.Actor
	_, err := t.tx.Exec(ctx, query,
		t.employeeID,
		t.yearMonth,
		bonus.ID,
		bonus.PaidOn,
		numericArg(bonus.BonusTotal),
		numericArg(bonus.StandardHealthBonus),
		numericArg(bonus.StandardWelfareBonus),
		bonus.SourcePaymentID,
		audit.At,
		audit.Actor,
	)
	return err
}

func (t *payrollMonthTx) DeleteBonus(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM bonus_payments WHERE employee_id=$1 AND year_month=$2 AND id=$3`,
		t.employeeID, t.yearMonth, id)
	return err
}

const monthColumns = `
        employee_id, year_month, amount::text, worked_days::text, bonus_total::text,
        standard_health_bonus_total::text, standard_welfare_bonus_total::text, updated_at, updated_by`

const bonusColumns = `
        employee_id, year_month, id, paid_on, bonus_total::text, standard_health_bonus::text,
        standard_welfare_bonus::text, source_payment_id, updated_at, updated_by`

func scanMonth(row pgx.Row) (*domain.PayrollMonth, error) {
	var (
		m                      domain.PayrollMonth
		amount, workedDays     *string
		bonus, health, welfare string
	)
	if err := row.Scan(
		&m.EmployeeID,
		&m.YearMonth,
		&amount,
		&workedDays,
		&bonus,
		&health,
		&welfare,
		&m.UpdatedAt,
		&m.UpdatedBy,
	); err != nil {
		return nil, err
	}

	var err error
	if m.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	if m.WorkedDays, err = parseNumeric(workedDays); err != nil {
		return nil, err
	}
	if m.BonusTotal, err = parseNumericOrZero(bonus); err != nil {
		return nil, err
	}
	if m.StandardHealthBonusTotal, err = parseNumericOrZero(health); err != nil {
		return nil, err
	}
	if m.StandardWelfareBonusTotal, err = parseNumericOrZero(welfare); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanBonus(row pgx.Row) (*domain.BonusPayment, error) {
	var (
		b                      domain.BonusPayment
		total, health, welfare *string
	)
	if err := row.Scan(
		&b.EmployeeID,
		&b.YearMonth,
		&b.ID,
		&b.PaidOn,
		&total,
		&health,
		&welfare,
		&b.SourcePaymentID,
		&b.UpdatedAt,
		&b.UpdatedBy,
	); err != nil {
		return nil, err
	}

	var err error
	if b.BonusTotal, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if b.StandardHealthBonus, err = parseNumeric(health); err != nil {
		return nil, err
	}
	if b.StandardWelfareBonus, err = parseNumeric(welfare); err != nil {
		return nil, err
	}
	return &b, nil
}
