package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// EmployeeRepository handles persistence for the employee registry.
// Lookups return pgx.ErrNoRows when nothing matches.
type EmployeeRepository interface {
	GetByNumber(ctx context.Context, employeeNumber string) (*domain.Employee, error)
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Employee, error)
	// ApplyBatch commits every create and update decision of one ingestion
	// call atomically. Created employees get their ID assigned in place.
	ApplyBatch(ctx context.Context, audit domain.AuditContext, writes []domain.EmployeeWrite) error
}

type employeeRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewEmployeeRepository instantiates the repository.
func NewEmployeeRepository(pool *pgxpool.Pool, tx *TxRunner) EmployeeRepository {
	return &employeeRepository{pool: pool, tx: tx}
}

const employeeColumns = `
        id, employee_number, name, normalized_name, name_kana, gender, birth_date, email,
        postal_code, address, address_detail, hire_date, resignation_date,
        health_standard_remuneration::text, pension_standard_remuneration::text,
        leave_status, leave_start_date, leave_end_date,
        health_insurance_acquired, pension_insurance_acquired, employment_insurance_acquired,
        has_dependent, created_at, created_by, updated_at, updated_by`

func (r *employeeRepository) GetByNumber(ctx context.Context, employeeNumber string) (*domain.Employee, error) {
	query := `SELECT` + employeeColumns + ` FROM employees WHERE employee_number=$1`
	return scanEmployee(r.pool.QueryRow(ctx, query, employeeNumber))
}

func (r *employeeRepository) GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Employee, error) {
	query := `SELECT` + employeeColumns + ` FROM employees WHERE employee_number=$1 AND normalized_name=$2`
	return scanEmployee(r.pool.QueryRow(ctx, query, identity.EmployeeNumber, identity.Name))
}

func (r *employeeRepository) ApplyBatch(ctx context.Context, audit domain.AuditContext, writes []domain.EmployeeWrite) error {
	if len(writes) == 0 {
		return nil
	}

	// IDs are assigned up front so a retried transaction reuses them.
	for _, w := range writes {
		if w.Kind == domain.WriteCreate && w.Employee.ID == "" {
			w.Employee.ID = uuid.NewString()
		}
	}

	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, w := range writes {
			switch w.Kind {
			case domain.WriteCreate:
				queueInsertEmployee(batch, audit, w.Employee)
			case domain.WriteUpdate:
				queueMergeEmployee(batch, audit, w.Employee)
			default:
				return fmt.Errorf("unknown write kind %q", w.Kind)
			}
		}

		results := tx.SendBatch(ctx, batch)
		for _, w := range writes {
			cmd, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("%s employee %s: %w", w.Kind, w.Employee.EmployeeNumber, err)
			}
			if w.Kind == domain.WriteUpdate && cmd.RowsAffected() == 0 {
				_ = results.Close()
				return fmt.Errorf("update employee %s: %w", w.Employee.EmployeeNumber, pgx.ErrNoRows)
			}
		}
		return results.Close()
	})
}

func queueInsertEmployee(batch *pgx.Batch, audit domain.AuditContext, e *domain.Employee) {
	const query = `
        INSERT INTO employees (
            id, employee_number, name, normalized_name, name_kana, gender, birth_date, email,
            postal_code, address, address_detail, hire_date, resignation_date,
            health_standard_remuneration, pension_standard_remuneration,
            leave_status, leave_start_date, leave_end_date,
            health_insurance_acquired, pension_insurance_acquired, employment_insurance_acquired,
            has_dependent, created_at, created_by, updated_at, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::text::numeric,$15::text::numeric,
            $16,$17,$18,$19,$20,$21,$22,$23,$24,$23,$24)`

	e.CreatedAt, e.CreatedBy = audit.At, audit.Actor
	e.UpdatedAt, e.UpdatedBy = audit.At, audit.Actor
	batch.Queue(query,
		e.ID, e.EmployeeNumber, e.Name, e.NormalizedName, e.NameKana, e.Gender, e.BirthDate, e.Email,
		e.PostalCode, e.Address, e.AddressDetail, e.HireDate, e.ResignationDate,
		numericArg(e.HealthStandardRemuneration), numericArg(e.PensionStandardRemuneration),
		e.LeaveStatus, e.LeaveStartDate, e.LeaveEndDate,
		e.HealthInsuranceAcquired, e.PensionInsuranceAcquired, e.EmploymentInsuranceAcquired,
		e.HasDependent, audit.At, audit.Actor,
	)
}

// queueMergeEmployee overwrites only the supplied fields; nil arguments keep
// the stored value.
func queueMergeEmployee(batch *pgx.Batch, audit domain.AuditContext, e *domain.Employee) {
	const query = `
        UPDATE employees SET
            name=$2,
            normalized_name=$3,
            name_kana=COALESCE($4, name_kana),
            gender=COALESCE($5, gender),
            birth_date=COALESCE($6, birth_date),
            email=COALESCE($7, email),
            postal_code=COALESCE($8, postal_code),
            address=COALESCE($9, address),
            address_detail=COALESCE($10, address_detail),
            hire_date=COALESCE($11, hire_date),
            resignation_date=COALESCE($12, resignation_date),
            health_standard_remuneration=COALESCE($13::text::numeric, health_standard_remuneration),
            pension_standard_remuneration=COALESCE($14::text::numeric, pension_standard_remuneration),
            leave_status=COALESCE($15, leave_status),
            leave_start_date=COALESCE($16, leave_start_date),
            leave_end_date=COALESCE($17, leave_end_date),
            health_insurance_acquired=COALESCE($18, health_insurance_acquired),
            pension_insurance_acquired=COALESCE($19, pension_insurance_acquired),
            employment_insurance_acquired=COALESCE($20, employment_insurance_acquired),
            has_dependent=COALESCE($21, has_dependent),
            updated_at=$22,
            updated_by=$23
        WHERE id=$1`

	e.UpdatedAt, e.UpdatedBy = audit.At, audit.Actor
	batch.Queue(query,
		e.ID, e.Name, e.NormalizedName, e.NameKana, e.Gender, e.BirthDate, e.Email,
		e.PostalCode, e.Address, e.AddressDetail, e.HireDate, e.ResignationDate,
		numericArg(e.HealthStandardRemuneration), numericArg(e.PensionStandardRemuneration),
		e.LeaveStatus, e.LeaveStartDate, e.LeaveEndDate,
		e.HealthInsuranceAcquired, e.PensionInsuranceAcquired, e.EmploymentInsuranceAcquired,
		e.HasDependent, audit.At, audit.Actor,
	)
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var (
		e               domain.Employee
		health, pension *string
	)
	if err := row.Scan(
		&e.ID,
		&e.EmployeeNumber,
		&e.Name,
		&e.NormalizedName,
		&e.NameKana,
		&e.Gender,
		&e.BirthDate,
		&e.Email,
		&e.PostalCode,
		&e.Address,
		&e.AddressDetail,
		&e.HireDate,
		&e.ResignationDate,
		&health,
		&pension,
		&e.LeaveStatus,
		&e.LeaveStartDate,
		&e.LeaveEndDate,
		&e.HealthInsuranceAcquired,
		&e.PensionInsuranceAcquired,
		&e.EmploymentInsuranceAcquired,
		&e.HasDependent,
		&e.CreatedAt,
		&e.CreatedBy,
		&e.UpdatedAt,
		&e.UpdatedBy,
	); err != nil {
		return nil, err
	}

	var err error
	if e.HealthStandardRemuneration, err = parseNumeric(health); err != nil {
		return nil, err
	}
	if e.PensionStandardRemuneration, err = parseNumeric(pension); err != nil {
		return nil, err
	}
	return &e, nil
}
