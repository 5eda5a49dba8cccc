package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// DependentRepository stores the dependents registered under employees.
type DependentRepository interface {
	// Replace swaps the employee's whole dependent set in one transaction.
	Replace(ctx context.Context, audit domain.AuditContext, employeeID string, dependents []domain.Dependent) error
	ListByEmployee(ctx context.Context, employeeID string) ([]domain.Dependent, error)
}

type dependentRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewDependentRepository builds repository.
func NewDependentRepository(pool *pgxpool.Pool, tx *TxRunner) DependentRepository {
	return &dependentRepository{pool: pool, tx: tx}
}

func (r *dependentRepository) Replace(ctx context.Context, audit domain.AuditContext, employeeID string, dependents []domain.Dependent) error {
	for i := range dependents {
		if dependents[i].ID == "" {
			dependents[i].ID = uuid.NewString()
		}
		dependents[i].EmployeeID = employeeID
		dependents[i].CreatedAt, dependents[i].CreatedBy = audit.At, audit.Actor
	}

	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM employees WHERE id=$1 FOR UPDATE`, employeeID).Scan(&locked); err != nil {
			return fmt.Errorf("lock employee %s: %w", employeeID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dependents WHERE employee_id=$1`, employeeID); err != nil {
			return err
		}
		if len(dependents) == 0 {
			return nil
		}

		const insert = `
            INSERT INTO dependents (id, employee_id, relationship, kanji_name, kana_name, gender, birth_date,
                annual_income, address, cohabiting, third_category, created_at, created_by)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8::text::numeric,$9,$10,$11,$12,$13)`
		batch := &pgx.Batch{}
		for _, d := range dependents {
			batch.Queue(insert,
				d.ID,
				employeeID,
				d.Relationship,
				d.KanjiName,
				d.KanaName,
				d.Gender,
				d.BirthDate,
				numericArg(d.AnnualIncome),
				d.Address,
				d.Cohabiting,
				d.ThirdCategory,
				audit.At,
				audit.Actor,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *dependentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]domain.Dependent, error) {
	const query = `
        SELECT id, employee_id, relationship, kanji_name, kana_name, gender, birth_date,
            annual_income::text, address, cohabiting, third_category, created_at, created_by
        FROM dependents WHERE employee_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Dependent
	for rows.Next() {
		var (
			d      domain.Dependent
			income *string
		)
		if err := rows.Scan(
			&d.ID,
			&d.EmployeeID,
			&d.Relationship,
			&d.KanjiName,
			&d.KanaName,
			&d.Gender,
			&d.BirthDate,
			&income,
			&d.Address,
			&d.Cohabiting,
			&d.ThirdCategory,
			&d.CreatedAt,
			&d.CreatedBy,
		); err != nil {
			return nil, err
		}
		if d.AnnualIncome, err = parseNumeric(income); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
