package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/events"
	"github.com/spec-kit/payroll-sync/internal/normalize"
	"github.com/spec-kit/payroll-sync/internal/observability"
	"github.com/spec-kit/payroll-sync/internal/repository"
	"github.com/spec-kit/payroll-sync/internal/reservation"
	"github.com/spec-kit/payroll-sync/internal/worker"
	apperrors "github.com/spec-kit/payroll-sync/pkg/util"
)

// SyncService ingests batches of employee records from the payroll system.
type SyncService struct {
	employees   repository.EmployeeRepository
	runs        repository.SyncRunRepository
	reservation reservation.Lookup
	reconciler  *reconciler
	payrolls    *PayrollAggregator
	dependents  *DependentReplacer
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	pool        worker.Options
	now         func() time.Time
}

// Dependencies defines the collaborators required by SyncService.
type Dependencies struct {
	EmployeeRepo  repository.EmployeeRepository
	PayrollRepo   repository.PayrollRepository
	DependentRepo repository.DependentRepository
	SyncRunRepo   repository.SyncRunRepository
	Reservations  reservation.Lookup
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	// Clock overrides time.Now; tests only.
	Clock func() time.Time
}

// NewSyncService constructs the service.
func NewSyncService(cfg config.SyncConfig, deps Dependencies) *SyncService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	lookup := deps.Reservations
	if lookup == nil {
		lookup = reservation.Static(nil)
	}
	return &SyncService{
		employees:   deps.EmployeeRepo,
		runs:        deps.SyncRunRepo,
		reservation: lookup,
		reconciler:  &reconciler{employees: deps.EmployeeRepo},
		payrolls:    NewPayrollAggregator(deps.PayrollRepo, cfg.BonusIDStrategy, logger),
		dependents:  NewDependentReplacer(deps.DependentRepo),
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		pool:        worker.Options{MaxWorkers: cfg.MaxWorkers},
		now:         clock,
	}
}

// sideEffect is the post-upsert work of one accepted record.
type sideEffect struct {
	plan       *plan
	employeeID string
}

// Sync runs one ingestion call. Record-level problems are reported in the
// result; a returned error means storage failed and the call was aborted.
func (s *SyncService) Sync(ctx context.Context, actor string, records []domain.ExternalRecord) (*domain.SyncResult, error) {
	audit := domain.NewAuditContext(actor, s.now())
	today := normalize.DateOnly(audit.At)
	result := &domain.SyncResult{Total: len(records), Errors: []domain.RecordError{}}

	if dups := findDuplicates(records); len(dups) > 0 {
		return s.reject(ctx, audit, result, records, dups, today)
	}

	reserved, err := s.reservation.PendingIdentifiers(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load reservations: %w", err))
	}

	var (
		plans  []*plan
		writes []domain.EmployeeWrite
	)
	for i, rec := range records {
		p, recErr, err := s.reconciler.reconcile(ctx, i, rec, reserved, today)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if recErr != nil {
			result.Errors = append(result.Errors, *recErr)
			continue
		}
		plans = append(plans, p)
		writes = append(writes, p.write)
	}

	if err := s.employees.ApplyBatch(ctx, audit, writes); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("apply employee batch: %w", err))
	}
	for _, p := range plans {
		if p.write.Kind == domain.WriteCreate {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.Processed = result.Created + result.Updated

	sideErrs, fatal := s.runSideEffects(ctx, audit, plans)
	result.Errors = append(result.Errors, sideErrs...)
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })
	result.HasErrors = len(result.Errors) > 0

	if fatal != nil {
		s.logger.Error("sync side effects failed",
			zap.String("actor", audit.Actor),
			zap.Int("total", result.Total),
			zap.Error(fatal))
		return nil, apperrors.NewInternalError(fatal)
	}

	s.publishEmployeeEvents(ctx, audit, plans)
	runID := s.recordRun(ctx, audit, result)
	s.publish(ctx, audit, events.EventSyncCompleted, "", summaryOf(runID, result))
	s.metrics.RecordSync(result)
	s.logger.Info("sync completed",
		zap.String("actor", audit.Actor),
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// reject builds the response for a batch with duplicate employee numbers.
// Validation results are computed for information only; nothing is written.
func (s *SyncService) reject(ctx context.Context, audit domain.AuditContext, result *domain.SyncResult, records []domain.ExternalRecord, dups []domain.RecordError, today time.Time) (*domain.SyncResult, error) {
	result.Rejected = true
	result.HasErrors = true
	result.Errors = dups
	result.ValidationErrors = validationErrors(records, today)

	runID := s.recordRun(ctx, audit, result)
	s.publish(ctx, audit, events.EventSyncRejected, "", summaryOf(runID, result))
	s.metrics.RecordSync(result)
	s.logger.Warn("sync rejected: duplicate employee numbers",
		zap.String("actor", audit.Actor),
		zap.Int("total", result.Total),
		zap.Int("duplicates", len(dups)))
	return result, nil
}

func validationErrors(records []domain.ExternalRecord, today time.Time) []domain.RecordError {
	out := []domain.RecordError{}
	for i, rec := range records {
		if msg := validateRecord(rec, today); msg != "" {
			out = append(out, domain.RecordError{Index: i, Identifier: identifierOf(rec), Message: msg})
		}
	}
	return out
}

// runSideEffects applies payroll and dependent work per employee through the
// bounded pool. Record-level failures come back as errors for the result;
// storage failures are joined into fatal.
func (s *SyncService) runSideEffects(ctx context.Context, audit domain.AuditContext, plans []*plan) ([]domain.RecordError, error) {
	units := make([]sideEffect, 0, len(plans))
	for _, p := range plans {
		if len(p.record.Payrolls) == 0 && !s.dependents.Applies(p.record) {
			continue
		}
		units = append(units, sideEffect{plan: p, employeeID: p.write.Employee.ID})
	}

	rejected := make([][]string, len(units))
	errs := worker.ForEach(ctx, units, s.pool, func(ctx context.Context, i int, u sideEffect) error {
		var unitErrs []error
		if len(u.plan.record.Payrolls) > 0 {
			msgs, err := s.payrolls.Apply(ctx, audit, u.employeeID, u.plan.record.Payrolls)
			rejected[i] = msgs
			if err != nil {
				unitErrs = append(unitErrs, fmt.Errorf("payroll: %w", err))
			}
		}
		if s.dependents.Applies(u.plan.record) {
			if err := s.dependents.Replace(ctx, audit, u.employeeID, u.plan.record); err != nil {
				unitErrs = append(unitErrs, fmt.Errorf("dependents: %w", err))
			}
		}
		return errors.Join(unitErrs...)
	})

	var (
		recordErrs []domain.RecordError
		fatal      []error
	)
	for i, u := range units {
		for _, msg := range rejected[i] {
			recordErrs = append(recordErrs, domain.RecordError{Index: u.plan.index, Identifier: u.plan.identifier, Message: msg})
		}
		if errs[i] != nil {
			s.logger.Error("side effect failed",
				zap.Int("index", u.plan.index),
				zap.String("employee_number", u.plan.identifier),
				zap.Error(errs[i]))
			fatal = append(fatal, fmt.Errorf("employee %s: %w", u.plan.identifier, errs[i]))
		}
	}
	return recordErrs, errors.Join(fatal...)
}

func (s *SyncService) publishEmployeeEvents(ctx context.Context, audit domain.AuditContext, plans []*plan) {
	for _, p := range plans {
		eventType := events.EventEmployeeUpdated
		if p.write.Kind == domain.WriteCreate {
			eventType = events.EventEmployeeCreated
		}
		s.publish(ctx, audit, eventType, p.write.Employee.ID, events.EmployeeChangedPayload{
			EmployeeNumber: p.write.Employee.EmployeeNumber,
			Name:           p.write.Employee.Name,
		})
	}
}

func (s *SyncService) publish(ctx context.Context, audit domain.AuditContext, eventType events.EventType, employeeID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EmployeeID: employeeID,
		Actor:      audit.Actor,
		Timestamp:  audit.At,
		Payload:    payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// recordRun appends to the sync run log. The log is informational, so a
// failure is logged and does not fail the call.
func (s *SyncService) recordRun(ctx context.Context, audit domain.AuditContext, result *domain.SyncResult) string {
	if s.runs == nil {
		return ""
	}
	run := &domain.SyncRun{
		Actor:     audit.Actor,
		StartedAt: audit.At,
		Total:     result.Total,
		Created:   result.Created,
		Updated:   result.Updated,
		Rejected:  result.Rejected,
		Errors:    result.Errors,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Warn("unable to record sync run", zap.Error(err))
		return ""
	}
	return run.ID
}

// RecentRuns lists the latest ingestion calls.
func (s *SyncService) RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if s.runs == nil {
		return []domain.SyncRun{}, nil
	}
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return runs, nil
}

func summaryOf(runID string, result *domain.SyncResult) events.SyncSummaryPayload {
	return events.SyncSummaryPayload{
		RunID:      runID,
		Total:      result.Total,
		Created:    result.Created,
		Updated:    result.Updated,
		ErrorCount: len(result.Errors),
	}
}
