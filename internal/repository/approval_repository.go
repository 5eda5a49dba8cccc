package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalRepository reads the approval workflow's request table. The
// workflow itself lives elsewhere; ingestion only needs pending reservations.
type ApprovalRepository interface {
	PendingNewHireNumbers(ctx context.Context) ([]string, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository constructs repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

func (r *approvalRepository) PendingNewHireNumbers(ctx context.Context) ([]string, error) {
	const query = `
        SELECT employee_number FROM approval_requests
        WHERE kind='new_hire' AND status='pending' AND employee_number IS NOT NULL`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
