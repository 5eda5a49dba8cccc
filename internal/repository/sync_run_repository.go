package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// SyncRunRepository stores the log of ingestion calls.
type SyncRunRepository interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

type syncRunRepository struct {
	pool *pgxpool.Pool
}

// NewSyncRunRepository builds repository.
func NewSyncRunRepository(pool *pgxpool.Pool) SyncRunRepository {
	return &syncRunRepository{pool: pool}
}

func (r *syncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO sync_runs (actor, started_at, total, created, updated, rejected, errors)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		run.Actor,
		run.StartedAt,
		run.Total,
		run.Created,
		run.Updated,
		run.Rejected,
		errs,
	).Scan(&run.ID, &run.CreatedAt)
}

func (r *syncRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, actor, started_at, total, created, updated, rejected, errors, created_at
        FROM sync_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SyncRun
	for rows.Next() {
		var (
			run  domain.SyncRun
			errs []byte
		)
		if err := rows.Scan(
			&run.ID,
			&run.Actor,
			&run.StartedAt,
			&run.Total,
			&run.Created,
			&run.Updated,
			&run.Rejected,
			&errs,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			if err := json.Unmarshal(errs, &run.Errors); err != nil {
				return nil, err
			}
		}
		result = append(result, run)
	}
	return result, rows.Err()
}
