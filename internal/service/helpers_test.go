package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/events"
	"github.com/spec-kit/payroll-sync/internal/observability"
	"github.com/spec-kit/payroll-sync/internal/repository/memory"
	"github.com/spec-kit/payroll-sync/internal/reservation"
)

var testNow = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func record(number, name string) domain.ExternalRecord {
	return domain.ExternalRecord{EmployeeNumber: strp(number), Name: strp(name)}
}

func salary(yearMonth, amount string) domain.ExternalPayroll {
	return domain.ExternalPayroll{YearMonth: strp(yearMonth), Amount: strp(amount)}
}

func bonus(paidOn, total string) domain.ExternalPayroll {
	return domain.ExternalPayroll{BonusPaidOn: strp(paidOn), BonusTotal: strp(total)}
}

type fixture struct {
	store   *memory.Store
	svc     *SyncService
	query   *QueryService
	metrics *observability.Metrics
}

func newFixture(t *testing.T, opts ...func(*config.SyncConfig, *Dependencies)) *fixture {
	t.Helper()
	store := memory.NewStore()
	metrics := observability.NewMetrics()
	cfg := config.SyncConfig{MaxWorkers: 4, BonusIDStrategy: config.BonusIDSequence}
	deps := Dependencies{
		EmployeeRepo:  store.Employees(),
		PayrollRepo:   store.Payrolls(),
		DependentRepo: store.Dependents(),
		SyncRunRepo:   store.SyncRuns(),
		Reservations:  reservation.NewRepositoryLookup(store.Approvals()),
		Dispatcher:    events.NewInMemoryDispatcher(),
		Metrics:       metrics,
		Clock:         func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	return &fixture{
		store:   store,
		svc:     NewSyncService(cfg, deps),
		query:   NewQueryService(deps),
		metrics: metrics,
	}
}

func (f *fixture) sync(t *testing.T, records ...domain.ExternalRecord) *domain.SyncResult {
	t.Helper()
	result, err := f.svc.Sync(context.Background(), "payroll-bridge", records)
	require.NoError(t, err)
	return result
}

func (f *fixture) month(t *testing.T, number, yearMonth string) *PayrollMonthView {
	t.Helper()
	view, err := f.query.PayrollMonth(context.Background(), number, yearMonth)
	require.NoError(t, err)
	return view
}
