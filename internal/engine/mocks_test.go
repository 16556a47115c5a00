package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"answerpulse/internal/models"
	"answerpulse/internal/state"
	"answerpulse/internal/store"
)

// In-memory stores with the same conditional-update semantics as the postgres
// implementations. Error hooks let tests inject per-call failures.

type memScheduleStore struct {
	mu        sync.Mutex
	schedules map[string]*models.Schedule
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{schedules: make(map[string]*models.Schedule)}
}

func (m *memScheduleStore) Create(ctx context.Context, sch *models.Schedule) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	cp := *sch
	m.schedules[sch.ID] = &cp
	return sch.ID, nil
}

func (m *memScheduleStore) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sch, ok := m.schedules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sch
	return &cp, nil
}

func (m *memScheduleStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Schedule
	for _, sch := range m.schedules {
		if !sch.IsActive {
			continue
		}
		if sch.NextRunAt == nil || !sch.NextRunAt.After(now) {
			due = append(due, *sch)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (m *memScheduleStore) SetLastRunAt(ctx context.Context, id string, lastRunAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sch, ok := m.schedules[id]
	if !ok {
		return store.ErrNotFound
	}
	sch.LastRunAt = &lastRunAt
	return nil
}

func (m *memScheduleStore) Activate(ctx context.Context, id string) error {
	return m.setActive(id, true)
}

func (m *memScheduleStore) Deactivate(ctx context.Context, id string) error {
	return m.setActive(id, false)
}

func (m *memScheduleStore) setActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sch, ok := m.schedules[id]
	if !ok {
		return store.ErrNotFound
	}
	sch.IsActive = active
	return nil
}

func (m *memScheduleStore) Close() error { return nil }

func (m *memScheduleStore) get(id string) *models.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.schedules[id]
	return &cp
}

type memRunStore struct {
	mu   sync.Mutex
	runs map[string]*models.JobRun

	// scheduleStore, when set, is updated inside Enqueue to mirror the
	// transactional insert-and-advance of the postgres store.
	scheduleStore *memScheduleStore

	enqueueErrFor   map[string]error // by schedule id
	hasActiveErrFor map[string]error // by schedule id
}

func newMemRunStore(schedules *memScheduleStore) *memRunStore {
	return &memRunStore{
		runs:            make(map[string]*models.JobRun),
		scheduleStore:   schedules,
		enqueueErrFor:   make(map[string]error),
		hasActiveErrFor: make(map[string]error),
	}
}

func (m *memRunStore) Enqueue(ctx context.Context, sch *models.Schedule, scheduledFor time.Time, nextRunAt *time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enqueueErrFor[sch.ID]; err != nil {
		return "", err
	}

	run := &models.JobRun{
		ID:           uuid.NewString(),
		ScheduleID:   sch.ID,
		OwnerID:      sch.OwnerID,
		JobType:      sch.JobType,
		Status:       state.StatusPending,
		ScheduledFor: scheduledFor,
		Metrics:      models.JSONMap{},
		Metadata:     models.JSONMap{},
		CreatedAt:    time.Now(),
	}
	m.runs[run.ID] = run

	if nextRunAt != nil && m.scheduleStore != nil {
		m.scheduleStore.mu.Lock()
		if stored, ok := m.scheduleStore.schedules[sch.ID]; ok {
			next := *nextRunAt
			stored.NextRunAt = &next
		}
		m.scheduleStore.mu.Unlock()
	}
	return run.ID, nil
}

func (m *memRunStore) FindByID(ctx context.Context, id string) (*models.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *memRunStore) FetchPending(ctx context.Context, limit int) ([]models.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []models.JobRun
	for _, run := range m.runs {
		if run.Status == state.StatusPending {
			pending = append(pending, *run)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ScheduledFor.Before(pending[j].ScheduledFor)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *memRunStore) HasActiveRun(ctx context.Context, scheduleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hasActiveErrFor[scheduleID]; err != nil {
		return false, err
	}
	for _, run := range m.runs {
		if run.ScheduleID == scheduleID && !run.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRunStore) Claim(ctx context.Context, runID, claimedBy string) (*models.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Status != state.StatusPending {
		return nil, nil
	}
	now := time.Now()
	run.Status = state.StatusProcessing
	run.StartedAt = &now
	run.ClaimedBy = &claimedBy
	cp := *run
	return &cp, nil
}

func (m *memRunStore) MarkCompleted(ctx context.Context, runID string, metrics, metadata models.JSONMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	run.Status = state.StatusCompleted
	run.Metrics = metrics
	for k, v := range metadata {
		run.Metadata[k] = v
	}
	run.FinishedAt = &now
	return nil
}

func (m *memRunStore) MarkFailed(ctx context.Context, runID, errMsg string, metadata models.JSONMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	run.Status = state.StatusFailed
	run.ErrorMessage = &errMsg
	for k, v := range metadata {
		run.Metadata[k] = v
	}
	run.FinishedAt = &now
	return nil
}

func (m *memRunStore) CountByStatus(ctx context.Context) (map[state.RunStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[state.RunStatus]int)
	for _, status := range state.AllRunStatuses {
		counts[status] = 0
	}
	for _, run := range m.runs {
		counts[run.Status]++
	}
	return counts, nil
}

func (m *memRunStore) Close() error { return nil }

func (m *memRunStore) all() []models.JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.JobRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out
}

func (m *memRunStore) single() models.JobRun {
	runs := m.all()
	if len(runs) != 1 {
		panic("expected exactly one run")
	}
	return runs[0]
}

type memExecutionStore struct {
	mu         sync.Mutex
	executions map[string]*models.ExecutionRecord
	results    map[string]string // execution id -> payload

	failedSinceErr error
}

func newMemExecutionStore() *memExecutionStore {
	return &memExecutionStore{
		executions: make(map[string]*models.ExecutionRecord),
		results:    make(map[string]string),
	}
}

func (m *memExecutionStore) add(ex models.ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.Metadata == nil {
		ex.Metadata = models.JSONMap{}
	}
	m.executions[ex.ID] = &ex
}

func (m *memExecutionStore) addResult(executionID, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[executionID] = payload
}

func (m *memExecutionStore) FailedSince(ctx context.Context, ownerID, brandID string, since time.Time) ([]models.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failedSinceErr != nil {
		return nil, m.failedSinceErr
	}
	var out []models.ExecutionRecord
	for _, ex := range m.executions {
		if ex.OwnerID == ownerID && ex.BrandID == brandID &&
			ex.Status == state.ExecutionFailed && !ex.UpdatedAt.Before(since) {
			out = append(out, *ex)
		}
	}
	return out, nil
}

func (m *memExecutionStore) StuckRunning(ctx context.Context, olderThan time.Time, limit int) ([]models.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExecutionRecord
	for _, ex := range m.executions {
		if ex.Status == state.ExecutionRunning && ex.UpdatedAt.Before(olderThan) {
			out = append(out, *ex)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memExecutionStore) HasResult(ctx context.Context, executionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.results[executionID]
	return ok && payload != "" && payload != "{}" && payload != "[]", nil
}

func (m *memExecutionStore) MarkCompleted(ctx context.Context, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[executionID]
	if !ok || ex.Status != state.ExecutionRunning {
		return nil
	}
	ex.Status = state.ExecutionCompleted
	ex.UpdatedAt = time.Now()
	return nil
}

func (m *memExecutionStore) MarkFailed(ctx context.Context, executionID, errMsg string, metadata models.JSONMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[executionID]
	if !ok || ex.Status != state.ExecutionRunning {
		return nil
	}
	ex.Status = state.ExecutionFailed
	ex.ErrorMessage = &errMsg
	for k, v := range metadata {
		ex.Metadata[k] = v
	}
	ex.UpdatedAt = time.Now()
	return nil
}

func (m *memExecutionStore) get(id string) models.ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.executions[id]
}

func (m *memExecutionStore) snapshot() map[string]models.ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.ExecutionRecord, len(m.executions))
	for id, ex := range m.executions {
		cp := *ex
		cp.UpdatedAt = time.Time{} // ignore touch timestamps when comparing
		out[id] = cp
	}
	return out
}

// Collaborator fakes.

type fakeCollection struct {
	mu       sync.Mutex
	calls    int
	lastOpts CollectionOptions
	stats    *CollectionStats
	err      error
	panicMsg string
}

func (f *fakeCollection) Execute(ctx context.Context, ownerID, brandID string, opts CollectionOptions) (*CollectionStats, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &CollectionStats{ItemsProcessed: 1, ResultsProduced: 1, Succeeded: 1}, nil
}

func (f *fakeCollection) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCollection) options() CollectionOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

type fakeScoring struct {
	mu       sync.Mutex
	calls    int
	lastOpts ScoringOptions
	stats    *ScoringStats
	err      error
	panicMsg string
}

func (f *fakeScoring) Score(ctx context.Context, brandID, ownerID string, opts ScoringOptions) (*ScoringStats, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &ScoringStats{PositionsProcessed: 1}, nil
}

func (f *fakeScoring) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
