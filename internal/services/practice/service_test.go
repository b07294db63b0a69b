package practice

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/practice-queue/internal/cache"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type mockProblems struct {
	problems []models.Problem
	err      error
	calls    int
}

func (m *mockProblems) List(ctx context.Context) ([]models.Problem, error) {
	m.calls++
	return m.problems, m.err
}

type mockAttempts struct {
	byUser map[uuid.UUID][]models.Attempt
	err    error
	onList func()
}

func (m *mockAttempts) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Attempt, error) {
	if m.err != nil {
		return nil, m.err
	}
	attempts := m.byUser[userID]
	if m.onList != nil {
		m.onList()
	}
	return attempts, nil
}

type mockStore struct {
	mu          sync.Mutex
	entries     map[string]*scheduler.Result
	generations map[uuid.UUID]int
	genErr      error
	getErr      error
	setErr      error
	invalidated []uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{
		entries:     make(map[string]*scheduler.Result),
		generations: make(map[uuid.UUID]int),
	}
}

func entryKey(userID uuid.UUID, generation, day string) string {
	return userID.String() + "/" + generation + "/" + day
}

func (m *mockStore) Generation(ctx context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.genErr != nil {
		return "", m.genErr
	}
	return strconv.Itoa(m.generations[userID]), nil
}

func (m *mockStore) Get(ctx context.Context, userID uuid.UUID, generation, day string) (*scheduler.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.entries[entryKey(userID, generation, day)]
	if !ok {
		return nil, cache.ErrMiss
	}
	return r, nil
}

func (m *mockStore) Set(ctx context.Context, userID uuid.UUID, generation string, result *scheduler.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[entryKey(userID, generation, result.Day)] = result
	return nil
}

func (m *mockStore) Invalidate(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, userID)
	m.generations[userID]++
	for key := range m.entries {
		if strings.HasPrefix(key, userID.String()+"/") {
			delete(m.entries, key)
		}
	}
	return nil
}

// current returns the snapshot a reader would be served right now
func (m *mockStore) current(userID uuid.UUID, day string) (*scheduler.Result, error) {
	generation, err := m.Generation(context.Background(), userID)
	if err != nil {
		return nil, err
	}
	return m.Get(context.Background(), userID, generation, day)
}

type mockEnqueuer struct {
	jobs []*queue.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func catalog() []models.Problem {
	return []models.Problem{
		{ID: "two-sum", Title: "Two Sum", Difficulty: models.DifficultyEasy, TopicName: "Arrays"},
		{ID: "word-ladder", Title: "Word Ladder", Difficulty: models.DifficultyHard, TopicName: "Graphs"},
		{ID: "coin-change", Title: "Coin Change", Difficulty: models.DifficultyMedium, TopicName: "DP"},
	}
}

func newTestService(t *testing.T, userID uuid.UUID, opts ...Option) (*Service, *mockProblems) {
	t.Helper()
	problems := &mockProblems{problems: catalog()}
	attempts := &mockAttempts{byUser: map[uuid.UUID][]models.Attempt{
		userID: {
			{ID: "a1", UserID: userID, ProblemID: "word-ladder", Date: fixedNow.AddDate(0, 0, -40), SolvedSolo: true, TimeSpent: 45},
			{ID: "a2", UserID: userID, ProblemID: "coin-change", Date: fixedNow.AddDate(0, 0, -1), SolvedSolo: true, TimeSpent: 30},
		},
	}}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(problems, attempts, scheduler.New(), opts...), problems
}

func TestActiveQueue(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc, _ := newTestService(t, userID)

	result, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}

	if result.Day != "2025-06-15" {
		t.Errorf("Expected day 2025-06-15, got %s", result.Day)
	}
	if len(result.Full) != 3 {
		t.Errorf("Expected 3 problems in full queue, got %d", len(result.Full))
	}
	if len(result.Active) != 2 {
		t.Fatalf("Expected 2 active problems, got %d", len(result.Active))
	}
	if result.Active[0].Problem.ID != "two-sum" || result.Active[1].Problem.ID != "word-ladder" {
		t.Errorf("Unexpected active order: %s, %s", result.Active[0].Problem.ID, result.Active[1].Problem.ID)
	}
	if result.Active[1].Reason.String() != "Review overdue by 37 days" {
		t.Errorf("Unexpected reason: %s", result.Active[1].Reason)
	}
	if result.Stats.Total != 2 || result.Stats.Overdue != 1 || result.Stats.NeverAttempted != 1 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
}

func TestActiveQueue_UsesCache(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	svc, problems := newTestService(t, userID, WithSnapshotStore(store))

	first, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}
	second, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}

	if problems.calls != 1 {
		t.Errorf("Expected catalog to be loaded once, got %d loads", problems.calls)
	}
	if first != second {
		t.Error("Expected the second call to return the cached result")
	}
}

func TestActiveQueue_CacheErrorFallsBack(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")
	svc, _ := newTestService(t, userID, WithSnapshotStore(store))

	result, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("Expected cache failures to be tolerated, got %v", err)
	}
	if len(result.Active) != 2 {
		t.Errorf("Expected 2 active problems, got %d", len(result.Active))
	}
}

func TestActiveQueue_InvalidatedDuringComputeIsNotServed(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	problems := &mockProblems{problems: catalog()}
	attempts := &mockAttempts{byUser: map[uuid.UUID][]models.Attempt{}}
	svc := NewService(problems, attempts, scheduler.New(),
		WithClock(func() time.Time { return fixedNow }),
		WithSnapshotStore(store),
	)

	// An attempt is recorded after the inputs were read but before the result is saved
	attempts.onList = func() {
		attempts.onList = nil
		attempts.byUser[userID] = []models.Attempt{
			{ID: "a1", UserID: userID, ProblemID: "two-sum", Date: fixedNow, SolvedSolo: false, TimeSpent: 20},
		}
		if err := store.Invalidate(context.Background(), userID); err != nil {
			t.Errorf("Invalidate failed: %v", err)
		}
	}

	stale, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}
	if len(stale.Active) != 3 {
		t.Fatalf("Expected the in-flight result to list 3 problems, got %d", len(stale.Active))
	}

	if _, err := store.current(userID, "2025-06-15"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Expected no servable snapshot after invalidation, got %v", err)
	}

	fresh, err := svc.ActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}
	if problems.calls != 2 {
		t.Errorf("Expected the queue to be recomputed, got %d catalog loads", problems.calls)
	}
	for _, item := range fresh.Active {
		if item.Problem.ID == "two-sum" {
			t.Error("Expected two-sum to be suppressed after today's unsolved attempt")
		}
	}
}

func TestRefresh_InvalidatedDuringComputeIsNotServed(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	attempts := &mockAttempts{byUser: map[uuid.UUID][]models.Attempt{}}
	svc := NewService(&mockProblems{problems: catalog()}, attempts, scheduler.New(),
		WithClock(func() time.Time { return fixedNow }),
		WithSnapshotStore(store),
	)

	attempts.onList = func() {
		attempts.onList = nil
		if err := store.Invalidate(context.Background(), userID); err != nil {
			t.Errorf("Invalidate failed: %v", err)
		}
	}

	if _, err := svc.Refresh(context.Background(), userID); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := store.current(userID, "2025-06-15"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Expected refreshed result from before the invalidation to be unreachable, got %v", err)
	}
}

func TestActiveQueue_GenerationErrorSkipsCache(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	store.genErr = errors.New("redis down")
	svc, _ := newTestService(t, userID, WithSnapshotStore(store))

	if _, err := svc.ActiveQueue(context.Background(), userID); err != nil {
		t.Fatalf("Expected generation failures to be tolerated, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("Expected nothing cached without a generation, got %d entries", len(store.entries))
	}
	if _, err := svc.Refresh(context.Background(), userID); err == nil {
		t.Error("Expected Refresh to report generation failures")
	}
}

func TestActiveQueue_LoadErrors(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	problemsErr := NewService(&mockProblems{err: errors.New("db down")}, &mockAttempts{}, nil)
	if _, err := problemsErr.ActiveQueue(context.Background(), userID); err == nil {
		t.Error("Expected error when problems fail to load")
	}

	attemptsErr := NewService(&mockProblems{problems: catalog()}, &mockAttempts{err: errors.New("db down")}, nil)
	if _, err := attemptsErr.ActiveQueue(context.Background(), userID); err == nil {
		t.Error("Expected error when attempts fail to load")
	}

	badCatalog := NewService(&mockProblems{problems: []models.Problem{{ID: "x", Difficulty: "legendary"}}}, &mockAttempts{}, nil)
	_, err := badCatalog.ActiveQueue(context.Background(), userID)
	if !errors.Is(err, scheduler.ErrUnknownDifficulty) {
		t.Errorf("Expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestActiveQueue_RecordsSpan(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	userID := uuid.New()
	svc, _ := newTestService(t, userID, WithTracerProvider(tp))

	if _, err := svc.ActiveQueue(context.Background(), userID); err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "practice.ActiveQueue" {
		t.Errorf("Expected span practice.ActiveQueue, got %s", spans[0].Name)
	}

	found := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "queue.active" && attr.Value.AsInt64() == 2 {
			found = true
		}
	}
	if !found {
		t.Error("Expected queue.active attribute of 2")
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	svc, _ := newTestService(t, userID, WithSnapshotStore(store))

	result, err := svc.Refresh(context.Background(), userID)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	cached, err := store.current(userID, result.Day)
	if err != nil {
		t.Fatalf("Expected refreshed snapshot to be stored: %v", err)
	}
	if cached != result {
		t.Error("Expected stored snapshot to be the refreshed result")
	}

	store.setErr = errors.New("redis down")
	if _, err := svc.Refresh(context.Background(), userID); err == nil {
		t.Error("Expected Refresh to report store failures")
	}
}

func TestAttemptsChanged(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := newMockStore()
	jobs := &mockEnqueuer{}
	svc, _ := newTestService(t, userID, WithSnapshotStore(store), WithJobQueue(jobs))

	if _, err := svc.ActiveQueue(context.Background(), userID); err != nil {
		t.Fatalf("ActiveQueue failed: %v", err)
	}

	if err := svc.AttemptsChanged(context.Background(), userID, queue.TriggerAttemptCreated); err != nil {
		t.Fatalf("AttemptsChanged failed: %v", err)
	}

	if len(store.invalidated) != 1 || store.invalidated[0] != userID {
		t.Errorf("Expected snapshot of %s to be invalidated, got %v", userID, store.invalidated)
	}
	if _, err := store.current(userID, "2025-06-15"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Expected cache miss after invalidation, got %v", err)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.Type != queue.JobTypeRefreshSnapshot || job.UserID != userID || job.Trigger != queue.TriggerAttemptCreated {
		t.Errorf("Unexpected job: %+v", job)
	}
	expectedExpiry := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	if job.NotAfter == nil || !job.NotAfter.Equal(expectedExpiry) {
		t.Errorf("Expected job to expire at %s, got %v", expectedExpiry, job.NotAfter)
	}
}

func TestAttemptsChanged_EnqueueFailure(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc, _ := newTestService(t, userID, WithJobQueue(&mockEnqueuer{err: errors.New("broker gone")}))

	if err := svc.AttemptsChanged(context.Background(), userID, queue.TriggerAttemptDeleted); err == nil {
		t.Error("Expected enqueue failure to be reported")
	}
}

func TestAttemptsChanged_WithoutCollaborators(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc, _ := newTestService(t, userID)

	if err := svc.AttemptsChanged(context.Background(), userID, queue.TriggerAttemptUpdated); err != nil {
		t.Errorf("Expected no error without cache or queue, got %v", err)
	}
}

func TestEndOfDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	svc := NewService(&mockProblems{}, &mockAttempts{}, scheduler.New(scheduler.WithLocation(loc)))

	// 20:00 UTC on Jun 15 is already 05:00 on Jun 16 in UTC+9.
	got := svc.EndOfDay(time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC))
	expected := time.Date(2025, 6, 17, 0, 0, 0, 0, loc)
	if !got.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}
