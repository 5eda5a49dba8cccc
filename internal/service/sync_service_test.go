package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/events"
	"github.com/spec-kit/payroll-sync/internal/repository"
	"github.com/spec-kit/payroll-sync/internal/reservation"
	apperrors "github.com/spec-kit/payroll-sync/pkg/util"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSyncRejectsBatchWithDuplicateNumbers(t *testing.T) {
	f := newFixture(t)
	var published []events.EventType
	f.svc.dispatcher.Subscribe(events.EventSyncRejected, func(_ context.Context, e events.Event) error {
		published = append(published, e.Type)
		return nil
	})

	result := f.sync(t,
		record("E1", "Taro"),
		record("E2", "Hanako"),
		record(" E 1 ", "Jiro"),
		record("E3", "  "),
		record("E2", "Hanako"),
	)

	assert.True(t, result.Rejected)
	assert.True(t, result.HasErrors)
	assert.Equal(t, 5, result.Total)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, domain.RecordError{Index: 2, Identifier: "E1", Message: "duplicate employee number in batch (first seen at index 0)"}, result.Errors[0])
	assert.Equal(t, domain.RecordError{Index: 4, Identifier: "E2", Message: "duplicate employee number in batch (first seen at index 1)"}, result.Errors[1])
	assert.Equal(t, []domain.RecordError{{Index: 3, Identifier: "E3", Message: "name is required"}}, result.ValidationErrors)

	_, err := f.store.Employees().GetByNumber(context.Background(), "E1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Equal(t, []events.EventType{events.EventSyncRejected}, published)

	runs, err := f.store.SyncRuns().ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Rejected)
}

func TestSyncCreatesNewEmployee(t *testing.T) {
	f := newFixture(t)
	rec := record("E 001", "山田　太郎")
	rec.Gender = strp("男")
	rec.HealthStandardRemuneration = strp("300,000")
	rec.HealthInsuranceAcquired = strp("はい")

	result := f.sync(t, rec)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Processed)
	assert.False(t, result.HasErrors)
	assert.Empty(t, result.Errors)

	stored, err := f.store.Employees().GetByNumber(context.Background(), "E001")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "山田　太郎", stored.Name)
	assert.Equal(t, "山田太郎", stored.NormalizedName)
	assert.Equal(t, domain.GenderMale, *stored.Gender)
	assert.True(t, dec("300000").Equal(*stored.HealthStandardRemuneration))
	assert.True(t, *stored.HealthInsuranceAcquired)
	assert.Equal(t, "payroll-bridge", stored.CreatedBy)
	assert.Equal(t, testNow, stored.CreatedAt)
}

func TestSyncUpdatesExistingEmployeePreservingAbsentFields(t *testing.T) {
	f := newFixture(t)
	first := record("E1", "Taro Yamada")
	first.Email = strp("taro@example.com")
	first.Address = strp("Tokyo")
	f.sync(t, first)

	second := record("E1", "TaroYamada")
	second.Email = strp("taro@example.org")
	second.Address = strp("   ")
	result := f.sync(t, second)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Processed)

	stored, err := f.store.Employees().GetByNumber(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, "taro@example.org", *stored.Email)
	assert.Equal(t, "Tokyo", *stored.Address)
}

func TestSyncRejectsIdentityConflict(t *testing.T) {
	f := newFixture(t)
	f.sync(t, record("E1", "Taro"))

	result := f.sync(t, record("E1", "Hanako"), record("E2", "Jiro"))

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.True(t, result.HasErrors)
	assert.Equal(t, []domain.RecordError{{Index: 0, Identifier: "E1", Message: msgIdentityConflict}}, result.Errors)

	stored, err := f.store.Employees().GetByNumber(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, "Taro", stored.Name)
}

func TestSyncRejectsReservedNumber(t *testing.T) {
	f := newFixture(t, func(_ *config.SyncConfig, deps *Dependencies) {
		deps.Reservations = reservation.Static{"N100"}
	})

	result := f.sync(t, record("N 100", "New Hire"))

	assert.Zero(t, result.Created)
	assert.Equal(t, []domain.RecordError{{Index: 0, Identifier: "N100", Message: msgReservationConflict}}, result.Errors)
}

func TestSyncReservationDoesNotBlockExistingEmployee(t *testing.T) {
	f := newFixture(t)
	f.sync(t, record("E1", "Taro"))
	f.store.AddPendingNewHire("E1")

	result := f.sync(t, record("E1", "Taro"))
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)
}

func TestSyncSeesReservationAddedBetweenCalls(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, func(_ *config.SyncConfig, deps *Dependencies) {
		deps.Reservations = reservation.NewCachedLookup(deps.Reservations, client, "test:reservations", time.Minute, zap.NewNop())
	})
	first := f.sync(t, record("E0", "Taro"))
	require.Equal(t, 1, first.Created)

	f.store.AddPendingNewHire("N9")

	second := f.sync(t, record("N9", "Hanako"))
	assert.Zero(t, second.Created)
	assert.Equal(t, []domain.RecordError{{Index: 0, Identifier: "N9", Message: msgReservationConflict}}, second.Errors)
}

func TestSyncRejectsDependentFlagWithoutDependents(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.HasDependent = strp("true")

	result := f.sync(t, rec)

	assert.Zero(t, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "at least one dependent is required when hasDependent is set", result.Errors[0].Message)
}

func TestSyncRejectsSalaryWithoutYearMonth(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{salary("2025-04", "300000"), {Amount: strp("1000")}}

	result := f.sync(t, rec)

	assert.Zero(t, result.Created)
	assert.Equal(t, []domain.RecordError{{Index: 0, Identifier: "E1", Message: "payrolls[1]: yearMonth is required for salary data"}}, result.Errors)
}

func TestSalaryAmountIsOverwrittenNotSummed(t *testing.T) {
	f := newFixture(t)
	first := record("E1", "Taro")
	first.Payrolls = []domain.ExternalPayroll{salary("2025-04", "300000")}
	f.sync(t, first)

	second := record("E1", "Taro")
	second.Payrolls = []domain.ExternalPayroll{salary("2025/4", "320000")}
	f.sync(t, second)

	view := f.month(t, "E1", "202504")
	assert.Equal(t, "202504", view.Month.YearMonth)
	assert.True(t, dec("320000").Equal(*view.Month.Amount))
	assert.True(t, view.Month.BonusTotal.IsZero())
	assert.Empty(t, view.Bonuses)
}

func TestSalaryKeepsWorkedDaysWhenOnlyAmountSent(t *testing.T) {
	f := newFixture(t)
	first := record("E1", "Taro")
	first.Payrolls = []domain.ExternalPayroll{{YearMonth: strp("202504"), Amount: strp("300000"), WorkedDays: strp("20")}}
	f.sync(t, first)

	second := record("E1", "Taro")
	second.Payrolls = []domain.ExternalPayroll{salary("202504", "310000")}
	f.sync(t, second)

	view := f.month(t, "E1", "202504")
	assert.True(t, dec("310000").Equal(*view.Month.Amount))
	assert.True(t, dec("20").Equal(*view.Month.WorkedDays))
}

func TestSameDayBonusesGetSequentialIDs(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{bonus("2025-06-01", "100000"), bonus("2025-06-01", "150000")}

	result := f.sync(t, rec)
	require.Empty(t, result.Errors)

	view := f.month(t, "E1", "202506")
	require.Len(t, view.Bonuses, 2)
	ids := []string{view.Bonuses[0].ID, view.Bonuses[1].ID}
	assert.ElementsMatch(t, []string{"20250601-100000-1", "20250601-150000-2"}, ids)
	assert.True(t, dec("250000").Equal(view.Month.BonusTotal))
}

func TestIdenticalSameDayBonusesInOneBatchStayDistinct(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{bonus("2025-06-01", "100000"), bonus("2025-06-01", "100000")}
	f.sync(t, rec)

	view := f.month(t, "E1", "202506")
	require.Len(t, view.Bonuses, 2)
	assert.True(t, dec("200000").Equal(view.Month.BonusTotal))

	// exact resend converges on the same two payments
	f.sync(t, rec)
	view = f.month(t, "E1", "202506")
	assert.Len(t, view.Bonuses, 2)
	assert.True(t, dec("200000").Equal(view.Month.BonusTotal))
}

func TestBonusResendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{
		{BonusPaidOn: strp("2025-06-01"), BonusTotal: strp("100000"), StandardHealthBonus: strp("99000"), StandardWelfareBonus: strp("98000")},
		bonus("2025-06-15", "150000"),
	}

	f.sync(t, rec)
	before := f.month(t, "E1", "202506")
	f.sync(t, rec)
	after := f.month(t, "E1", "202506")

	assert.Len(t, after.Bonuses, 2)
	assert.True(t, before.Month.BonusTotal.Equal(after.Month.BonusTotal))
	assert.True(t, before.Month.StandardHealthBonusTotal.Equal(after.Month.StandardHealthBonusTotal))
	assert.True(t, before.Month.StandardWelfareBonusTotal.Equal(after.Month.StandardWelfareBonusTotal))
	assert.True(t, dec("250000").Equal(after.Month.BonusTotal))
	assert.True(t, dec("99000").Equal(after.Month.StandardHealthBonusTotal))
}

func TestBonusEditChangesTotalByDelta(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{
		{BonusPaidOn: strp("2025-06-01"), BonusTotal: strp("100000"), StandardHealthBonus: strp("100000"), SourcePaymentID: strp("PAY-1")},
		bonus("2025-06-20", "50000"),
	}
	f.sync(t, rec)
	before := f.month(t, "E1", "202506")
	require.True(t, dec("150000").Equal(before.Month.BonusTotal))

	edited := record("E1", "Taro")
	edited.Payrolls = []domain.ExternalPayroll{
		{BonusPaidOn: strp("2025-06-01"), BonusTotal: strp("130000"), SourcePaymentID: strp("PAY-1")},
	}
	f.sync(t, edited)
	after := f.month(t, "E1", "202506")

	assert.True(t, dec("30000").Equal(after.Month.BonusTotal.Sub(before.Month.BonusTotal)))
	// the omitted split keeps its stored value and contribution
	assert.True(t, dec("100000").Equal(after.Month.StandardHealthBonusTotal))
	assert.Len(t, after.Bonuses, 2)
}

func TestBonusWithoutPaidOnIsReportedAndOthersApplied(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{
		{YearMonth: strp("2025-06"), BonusTotal: strp("100000")},
		salary("2025-06", "300000"),
		bonus("2025-06-10", "80000"),
	}

	result := f.sync(t, rec)

	assert.Equal(t, 1, result.Created)
	assert.True(t, result.HasErrors)
	assert.Equal(t, []domain.RecordError{{Index: 0, Identifier: "E1", Message: "payrolls[0]: bonus paid-on date is required to resolve the payroll month"}}, result.Errors)

	view := f.month(t, "E1", "202506")
	assert.True(t, dec("300000").Equal(*view.Month.Amount))
	assert.True(t, dec("80000").Equal(view.Month.BonusTotal))
}

func TestNonNumericPayrollFiguresAreReported(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{
		salary("2025-06", "abc"),
		bonus("2025-06-01", "1O0000"),
		{BonusPaidOn: strp("2025-06-02"), BonusTotal: strp("1000"), StandardHealthBonus: strp("n/a")},
		{YearMonth: strp("2025-06"), WorkedDays: strp("twenty")},
		bonus("2025-06-10", "80,000"),
	}

	result := f.sync(t, rec)

	assert.Equal(t, 1, result.Created)
	assert.True(t, result.HasErrors)
	assert.Equal(t, []domain.RecordError{
		{Index: 0, Identifier: "E1", Message: "payrolls[0]: amount must be numeric"},
		{Index: 0, Identifier: "E1", Message: "payrolls[1]: bonusTotal must be numeric"},
		{Index: 0, Identifier: "E1", Message: "payrolls[2]: standardHealthBonus must be numeric"},
		{Index: 0, Identifier: "E1", Message: "payrolls[3]: workedDays must be numeric"},
	}, result.Errors)

	view := f.month(t, "E1", "202506")
	assert.Nil(t, view.Month.Amount)
	assert.Nil(t, view.Month.WorkedDays)
	assert.True(t, dec("80000").Equal(view.Month.BonusTotal))
	require.Len(t, view.Bonuses, 1)
	assert.Equal(t, "20250610-80000-1", view.Bonuses[0].ID)
}

func TestSourceIdentifiedBonusMovesBetweenMonths(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{{
		BonusPaidOn:         strp("2025-06-30"),
		BonusTotal:          strp("100000"),
		StandardHealthBonus: strp("90000"),
		SourcePaymentID:     strp("PAY-1"),
	}}
	f.sync(t, rec)

	rec.Payrolls = []domain.ExternalPayroll{{
		BonusPaidOn:     strp("2025-07-01"),
		BonusTotal:      strp("120000"),
		SourcePaymentID: strp("PAY-1"),
	}}
	result := f.sync(t, rec)
	require.Empty(t, result.Errors)

	june := f.month(t, "E1", "202506")
	assert.True(t, june.Month.BonusTotal.IsZero())
	assert.True(t, june.Month.StandardHealthBonusTotal.IsZero())
	assert.Empty(t, june.Bonuses)

	july := f.month(t, "E1", "202507")
	assert.True(t, dec("120000").Equal(july.Month.BonusTotal))
	assert.True(t, dec("90000").Equal(july.Month.StandardHealthBonusTotal))
	require.Len(t, july.Bonuses, 1)
	assert.Equal(t, "PAY-1", july.Bonuses[0].ID)

	again := f.sync(t, rec)
	require.Empty(t, again.Errors)
	assert.True(t, dec("120000").Equal(f.month(t, "E1", "202507").Month.BonusTotal))
}

func TestDependentsAreReplaced(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.HasDependent = strp("yes")
	rec.Dependents = []domain.ExternalDependent{
		{Relationship: strp("妻"), KanjiName: strp(" 山田 花子 "), AnnualIncome: strp("1,030,000"), ThirdCategory: strp("該当")},
		{Relationship: strp("子"), KanjiName: strp("山田 次郎"), ThirdCategory: strp("maybe")},
	}
	f.sync(t, rec)

	_, deps, err := f.query.Dependents(context.Background(), "E1")
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "山田 花子", *deps[0].KanjiName)
	assert.True(t, dec("1030000").Equal(*deps[0].AnnualIncome))
	assert.True(t, *deps[0].ThirdCategory)
	assert.Nil(t, deps[1].ThirdCategory)

	cleared := record("E1", "Taro")
	cleared.HasDependent = strp("0")
	f.sync(t, cleared)

	_, deps, err = f.query.Dependents(context.Background(), "E1")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestDependentsUntouchedWithoutListOrFalseFlag(t *testing.T) {
	f := newFixture(t)
	rec := record("E1", "Taro")
	rec.HasDependent = strp("1")
	rec.Dependents = []domain.ExternalDependent{{Relationship: strp("妻"), KanjiName: strp("花子")}}
	f.sync(t, rec)

	f.sync(t, record("E1", "Taro"))

	_, deps, err := f.query.Dependents(context.Background(), "E1")
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

type failingEmployees struct {
	repository.EmployeeRepository
}

func (failingEmployees) ApplyBatch(context.Context, domain.AuditContext, []domain.EmployeeWrite) error {
	return errors.New("connection reset")
}

func TestUpsertFailureIsInternalAndWritesNothing(t *testing.T) {
	f := newFixture(t, func(_ *config.SyncConfig, deps *Dependencies) {
		deps.EmployeeRepo = failingEmployees{deps.EmployeeRepo}
	})
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{salary("2025-04", "300000")}

	result, err := f.svc.Sync(context.Background(), "tester", []domain.ExternalRecord{rec})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.CodeInternal, apperrors.ToDomainError(err).Code)
	_, err = f.store.Employees().GetByNumber(context.Background(), "E1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

type failingPayrolls struct {
	repository.PayrollRepository
	failFor string
}

func (p failingPayrolls) InMonth(ctx context.Context, employeeID, yearMonth string, fn func(context.Context, repository.PayrollMonthTx) error) error {
	if employeeID == p.failFor {
		return errors.New("could not serialize access")
	}
	return p.PayrollRepository.InMonth(ctx, employeeID, yearMonth, fn)
}

func TestSideEffectStorageFailureDoesNotStopSiblings(t *testing.T) {
	f := newFixture(t)
	doomed := f.store.SeedEmployee(domain.Employee{EmployeeNumber: "E1", Name: "Taro", NormalizedName: "Taro"})
	f.svc.payrolls.payrolls = failingPayrolls{PayrollRepository: f.store.Payrolls(), failFor: doomed.ID}

	one := record("E1", "Taro")
	one.Payrolls = []domain.ExternalPayroll{salary("2025-04", "300000")}
	two := record("E2", "Hanako")
	two.Payrolls = []domain.ExternalPayroll{salary("2025-04", "280000")}

	_, err := f.svc.Sync(context.Background(), "tester", []domain.ExternalRecord{one, two})

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.ToDomainError(err).Code)
	assert.ErrorContains(t, err, "employee E1")

	view := f.month(t, "E2", "202504")
	assert.True(t, dec("280000").Equal(*view.Month.Amount))
}

func TestConcurrentSyncsDoNotLoseBonusUpdates(t *testing.T) {
	f := newFixture(t)
	f.sync(t, record("E1", "Taro"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := record("E1", "Taro")
			rec.Payrolls = []domain.ExternalPayroll{{
				BonusPaidOn:     strp("2025-06-01"),
				BonusTotal:      strp("1000"),
				SourcePaymentID: strp("PAY-" + string(rune('A'+i))),
			}}
			_, err := f.svc.Sync(context.Background(), "tester", []domain.ExternalRecord{rec})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view := f.month(t, "E1", "202506")
	assert.Len(t, view.Bonuses, 10)
	assert.True(t, dec("10000").Equal(view.Month.BonusTotal))
}

func TestSyncRecordsRunAndMetrics(t *testing.T) {
	f := newFixture(t)
	var completed []events.Event
	f.svc.dispatcher.Subscribe(events.EventSyncCompleted, func(_ context.Context, e events.Event) error {
		completed = append(completed, e)
		return nil
	})
	f.sync(t, record("E1", "Taro"), record("", "Nobody"))

	runs, err := f.svc.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "payroll-bridge", runs[0].Actor)
	assert.Equal(t, 1, runs[0].Created)
	assert.Len(t, runs[0].Errors, 1)

	require.Len(t, completed, 1)
	summary := completed[0].Payload.(events.SyncSummaryPayload)
	assert.Equal(t, runs[0].ID, summary.RunID)
	assert.Equal(t, 1, summary.ErrorCount)

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 1, snap["sync"]["created"])
}

func TestContentHashStrategyIsIdempotentOnResend(t *testing.T) {
	f := newFixture(t, func(cfg *config.SyncConfig, _ *Dependencies) {
		cfg.BonusIDStrategy = config.BonusIDContentHash
	})
	rec := record("E1", "Taro")
	rec.Payrolls = []domain.ExternalPayroll{bonus("2025-06-01", "100000"), bonus("2025-06-01", "100000")}

	f.sync(t, rec)
	f.sync(t, rec)

	view := f.month(t, "E1", "202506")
	require.Len(t, view.Bonuses, 2)
	assert.Contains(t, view.Bonuses[0].ID, "b-")
	assert.True(t, dec("200000").Equal(view.Month.BonusTotal))
}
