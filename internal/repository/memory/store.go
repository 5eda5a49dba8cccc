// Package memory provides in-process implementations of the repository
// interfaces for development without Postgres and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/payroll-sync/internal/domain"
	"github.com/spec-kit/payroll-sync/internal/repository"
)

// Store holds all tables behind one mutex. Month-scoped transactions
// additionally serialize on a per-(employee, month) lock and commit their
// staged copy only when the unit of work succeeds.
type Store struct {
	mu         sync.RWMutex
	employees  map[string]domain.Employee // by ID
	byNumber   map[string]string          // employee number -> ID
	months     map[monthKey]monthState
	dependents map[string][]domain.Dependent
	approvals  []string
	runs       []domain.SyncRun

	lockMu     sync.Mutex
	monthLocks map[monthKey]*sync.Mutex
}

type monthKey struct {
	employeeID string
	yearMonth  string
}

type monthState struct {
	month   *domain.PayrollMonth
	bonuses map[string]domain.BonusPayment
}

func (s monthState) clone() monthState {
	out := monthState{bonuses: make(map[string]domain.BonusPayment, len(s.bonuses))}
	if s.month != nil {
		m := *s.month
		out.month = &m
	}
	for id, b := range s.bonuses {
		out.bonuses[id] = b
	}
	return out
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		employees:  make(map[string]domain.Employee),
		byNumber:   make(map[string]string),
		months:     make(map[monthKey]monthState),
		dependents: make(map[string][]domain.Dependent),
		monthLocks: make(map[monthKey]*sync.Mutex),
	}
}

// Employees returns the employee repository view.
func (s *Store) Employees() repository.EmployeeRepository { return employeeRepo{s} }

// Payrolls returns the payroll repository view.
func (s *Store) Payrolls() repository.PayrollRepository { return payrollRepo{s} }

// Dependents returns the dependent repository view.
func (s *Store) Dependents() repository.DependentRepository { return dependentRepo{s} }

// Approvals returns the approval request view.
func (s *Store) Approvals() repository.ApprovalRepository { return approvalRepo{s} }

// SyncRuns returns the sync run log view.
func (s *Store) SyncRuns() repository.SyncRunRepository { return syncRunRepo{s} }

// AddPendingNewHire registers a pending new-hire reservation.
func (s *Store) AddPendingNewHire(employeeNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals = append(s.approvals, employeeNumber)
}

// SeedEmployee inserts an employee directly, assigning an ID if needed.
func (s *Store) SeedEmployee(e domain.Employee) domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.employees[e.ID] = e
	s.byNumber[e.EmployeeNumber] = e.ID
	return e
}

func (s *Store) monthLock(k monthKey) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.monthLocks[k]
	if !ok {
		l = &sync.Mutex{}
		s.monthLocks[k] = l
	}
	return l
}

// ---- employees ----

type employeeRepo struct{ s *Store }

func (r employeeRepo) GetByNumber(_ context.Context, employeeNumber string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byNumber[employeeNumber]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	e := r.s.employees[id]
	return &e, nil
}

func (r employeeRepo) GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Employee, error) {
	e, err := r.GetByNumber(ctx, identity.EmployeeNumber)
	if err != nil {
		return nil, err
	}
	if e.NormalizedName != identity.Name {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (r employeeRepo) ApplyBatch(_ context.Context, audit domain.AuditContext, writes []domain.EmployeeWrite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	staged := make(map[string]domain.Employee, len(writes))
	numbers := make(map[string]string, len(writes))
	for _, w := range writes {
		e := w.Employee
		switch w.Kind {
		case domain.WriteCreate:
			if _, taken := r.s.byNumber[e.EmployeeNumber]; taken {
				return fmt.Errorf("create employee %s: duplicate employee number", e.EmployeeNumber)
			}
			if _, taken := numbers[e.EmployeeNumber]; taken {
				return fmt.Errorf("create employee %s: duplicate employee number", e.EmployeeNumber)
			}
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			e.CreatedAt, e.CreatedBy = audit.At, audit.Actor
			e.UpdatedAt, e.UpdatedBy = audit.At, audit.Actor
			staged[e.ID] = *e
			numbers[e.EmployeeNumber] = e.ID
		case domain.WriteUpdate:
			current, ok := staged[e.ID]
			if !ok {
				current, ok = r.s.employees[e.ID]
			}
			if !ok {
				return fmt.Errorf("update employee %s: %w", e.EmployeeNumber, pgx.ErrNoRows)
			}
			merged := mergeEmployee(current, *e)
			merged.UpdatedAt, merged.UpdatedBy = audit.At, audit.Actor
			e.UpdatedAt, e.UpdatedBy = audit.At, audit.Actor
			staged[e.ID] = merged
		default:
			return fmt.Errorf("unknown write kind %q", w.Kind)
		}
	}

	for id, e := range staged {
		r.s.employees[id] = e
	}
	for number, id := range numbers {
		r.s.byNumber[number] = id
	}
	return nil
}

func mergeEmployee(current, in domain.Employee) domain.Employee {
	current.Name = in.Name
	current.NormalizedName = in.NormalizedName
	overwrite(&current.NameKana, in.NameKana)
	overwrite(&current.Gender, in.Gender)
	overwrite(&current.BirthDate, in.BirthDate)
	overwrite(&current.Email, in.Email)
	overwrite(&current.PostalCode, in.PostalCode)
	overwrite(&current.Address, in.Address)
	overwrite(&current.AddressDetail, in.AddressDetail)
	overwrite(&current.HireDate, in.HireDate)
	overwrite(&current.ResignationDate, in.ResignationDate)
	overwrite(&current.HealthStandardRemuneration, in.HealthStandardRemuneration)
	overwrite(&current.PensionStandardRemuneration, in.PensionStandardRemuneration)
	overwrite(&current.LeaveStatus, in.LeaveStatus)
	overwrite(&current.LeaveStartDate, in.LeaveStartDate)
	overwrite(&current.LeaveEndDate, in.LeaveEndDate)
	overwrite(&current.HealthInsuranceAcquired, in.HealthInsuranceAcquired)
	overwrite(&current.PensionInsuranceAcquired, in.PensionInsuranceAcquired)
	overwrite(&current.EmploymentInsuranceAcquired, in.EmploymentInsuranceAcquired)
	overwrite(&current.HasDependent, in.HasDependent)
	return current
}

func overwrite[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// ---- payroll ----

type payrollRepo struct{ s *Store }

func (r payrollRepo) InMonth(ctx context.Context, employeeID, yearMonth string, fn func(context.Context, repository.PayrollMonthTx) error) error {
	k := monthKey{employeeID: employeeID, yearMonth: yearMonth}
	lock := r.s.monthLock(k)
	lock.Lock()
	defer lock.Unlock()

	r.s.mu.RLock()
	_, known := r.s.employees[employeeID]
	staged := r.s.months[k].clone()
	r.s.mu.RUnlock()
	if !known {
		return fmt.Errorf("payroll month %s for employee %s: %w", yearMonth, employeeID, pgx.ErrNoRows)
	}

	tx := &monthTx{key: k, state: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.s.mu.Lock()
	r.s.months[k] = tx.state
	r.s.mu.Unlock()
	return nil
}

func (r payrollRepo) GetMonth(_ context.Context, employeeID, yearMonth string) (*domain.PayrollMonth, []domain.BonusPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state, ok := r.s.months[monthKey{employeeID: employeeID, yearMonth: yearMonth}]
	if !ok || state.month == nil {
		return nil, nil, pgx.ErrNoRows
	}
	month := *state.month
	bonuses := make([]domain.BonusPayment, 0, len(state.bonuses))
	for _, b := range state.bonuses {
		bonuses = append(bonuses, b)
	}
	sort.Slice(bonuses, func(i, j int) bool {
		if !bonuses[i].PaidOn.Equal(bonuses[j].PaidOn) {
			return bonuses[i].PaidOn.Before(bonuses[j].PaidOn)
		}
		return bonuses[i].ID < bonuses[j].ID
	})
	return &month, bonuses, nil
}

func (r payrollRepo) BonusMonths(_ context.Context, employeeID, bonusID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var months []string
	for k, state := range r.s.months {
		if _, ok := state.bonuses[bonusID]; ok && k.employeeID == employeeID {
			months = append(months, k.yearMonth)
		}
	}
	sort.Strings(months)
	return months, nil
}

type monthTx struct {
	key   monthKey
	state monthState
}

func (t *monthTx) Month(context.Context) (*domain.PayrollMonth, error) {
	if t.state.month == nil {
		return nil, nil
	}
	m := *t.state.month
	return &m, nil
}

func (t *monthTx) BonusIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(t.state.bonuses))
	for id := range t.state.bonuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *monthTx) Bonus(_ context.Context, id string) (*domain.BonusPayment, error) {
	b, ok := t.state.bonuses[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *monthTx) SaveMonth(_ context.Context, audit domain.AuditContext, month *domain.PayrollMonth) error {
	month.EmployeeID, month.YearMonth = t.key.employeeID, t.key.yearMonth
	month.UpdatedAt, month.UpdatedBy = audit.At, audit.Actor
	next := *month
	if prev := t.state.month; prev != nil {
		if next.Amount == nil {
			next.Amount = prev.Amount
		}
		if next.WorkedDays == nil {
			next.WorkedDays = prev.WorkedDays
		}
	}
	t.state.month = &next
	return nil
}

func (t *monthTx) SaveBonus(_ context.Context, audit domain.AuditContext, bonus *domain.BonusPayment) error {
	bonus.EmployeeID, bonus.YearMonth = t.key.employeeID, t.key.yearMonth
	bonus.UpdatedAt, bonus.UpdatedBy = audit.At, audit.Actor
	next := *bonus
	if prev, ok := t.state.bonuses[bonus.ID]; ok {
		overwrite(&prev.BonusTotal, next.BonusTotal)
		overwrite(&prev.StandardHealthBonus, next.StandardHealthBonus)
		overwrite(&prev.StandardWelfareBonus, next.StandardWelfareBonus)
		overwrite(&prev.SourcePaymentID, next.SourcePaymentID)
		prev.PaidOn = next.PaidOn
		prev.UpdatedAt, prev.UpdatedBy = next.UpdatedAt, next.UpdatedBy
		next = prev
	}
	t.state.bonuses[bonus.ID] = next
	return nil
}

func (t *monthTx) DeleteBonus(_ context.Context, id string) error {
	delete(t.state.bonuses, id)
	return nil
}

// ---- dependents ----

type dependentRepo struct{ s *Store }

func (r dependentRepo) Replace(_ context.Context, audit domain.AuditContext, employeeID string, dependents []domain.Dependent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.employees[employeeID]; !ok {
		return fmt.Errorf("lock employee %s: %w", employeeID, pgx.ErrNoRows)
	}
	next := make([]domain.Dependent, len(dependents))
	for i, d := range dependents {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.EmployeeID = employeeID
		d.CreatedAt, d.CreatedBy = audit.At, audit.Actor
		dependents[i] = d
		next[i] = d
	}
	r.s.dependents[employeeID] = next
	return nil
}

func (r dependentRepo) ListByEmployee(_ context.Context, employeeID string) ([]domain.Dependent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Dependent, len(r.s.dependents[employeeID]))
	copy(out, r.s.dependents[employeeID])
	return out, nil
}

// ---- approvals ----

type approvalRepo struct{ s *Store }

func (r approvalRepo) PendingNewHireNumbers(context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]string, len(r.s.approvals))
	copy(out, r.s.approvals)
	return out, nil
}

// ---- sync runs ----

type syncRunRepo struct{ s *Store }

func (r syncRunRepo) Create(_ context.Context, run *domain.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run.ID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	r.s.runs = append(r.s.runs, *run)
	return nil
}

func (r syncRunRepo) ListRecent(_ context.Context, limit int) ([]domain.SyncRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]domain.SyncRun, 0, limit)
	for i := len(r.s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.s.runs[i])
	}
	return out, nil
}

// BonusIDsWithPrefix lists stored bonus ids of a month that start with
// prefix. Test helper.
func (s *Store) BonusIDsWithPrefix(employeeID, yearMonth, prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id := range s.months[monthKey{employeeID: employeeID, yearMonth: yearMonth}].bonuses {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
