package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes worth retrying.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// RetryPolicy bounds retries of transactions that lost a serialization race.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// TxRunner executes units of work in serializable transactions.
type TxRunner struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

// NewTxRunner builds a runner over the pool.
func NewTxRunner(pool *pgxpool.Pool, retry RetryPolicy) *TxRunner {
	return &TxRunner{pool: pool, retry: retry}
}

// Run executes fn in a serializable transaction. fn may run more than once
// and must not leak side effects outside the transaction.
func (r *TxRunner) Run(ctx context.Context, fn func(pgx.Tx) error) error {
	operation := func() (struct{}, error) {
		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	if r.retry.BaseDelay > 0 {
		policy.InitialInterval = r.retry.BaseDelay
	}
	tries := r.retry.MaxRetries + 1
	if tries < 1 {
		tries = 1
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(tries)),
	)
	return err
}

// IsRetryable reports whether err is a transient serialization conflict.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
