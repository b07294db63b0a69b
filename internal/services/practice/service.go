// Package practice assembles a user's practice queue from the catalog and their attempt history.
package practice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/cache"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/benvon/practice-queue/internal/services/practice"

// ProblemLister loads the problem catalog
type ProblemLister interface {
	List(ctx context.Context) ([]models.Problem, error)
}

// AttemptLister loads the attempt history of one user
type AttemptLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Attempt, error)
}

// SnapshotStore caches computed results per user, day and generation.
// Invalidate must advance the generation so results computed before it are never served.
type SnapshotStore interface {
	Generation(ctx context.Context, userID uuid.UUID) (string, error)
	Get(ctx context.Context, userID uuid.UUID, generation, day string) (*scheduler.Result, error)
	Set(ctx context.Context, userID uuid.UUID, generation string, result *scheduler.Result) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

var _ SnapshotStore = (*cache.SnapshotCache)(nil)

// Service computes practice queues. The zero value is not usable; use NewService.
type Service struct {
	problems  ProblemLister
	attempts  AttemptLister
	scheduler *scheduler.Scheduler
	store     SnapshotStore
	jobs      queue.Enqueuer
	clock     func() time.Time
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithSnapshotStore enables result caching
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithJobQueue enables background refresh jobs after attempt changes
func WithJobQueue(jobs queue.Enqueuer) Option {
	return func(s *Service) {
		s.jobs = jobs
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are recorded with. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewService creates a practice service
func NewService(problems ProblemLister, attempts AttemptLister, sched *scheduler.Scheduler, opts ...Option) *Service {
	if sched == nil {
		sched = scheduler.New()
	}
	s := &Service{
		problems:  problems,
		attempts:  attempts,
		scheduler: sched,
		clock:     time.Now,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time according to the service clock
func (s *Service) Now() time.Time {
	return s.clock()
}

// EndOfDay returns the first instant of the day after the one containing t, in the scheduler's location
func (s *Service) EndOfDay(t time.Time) time.Time {
	local := t.In(s.scheduler.Location())
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())
}

// ActiveQueue returns today's result for userID, served from the snapshot store when one is cached
func (s *Service) ActiveQueue(ctx context.Context, userID uuid.UUID) (*scheduler.Result, error) {
	ctx, span := s.tracer.Start(ctx, "practice.ActiveQueue",
		trace.WithAttributes(attribute.String("user_id", userID.String())),
	)
	defer span.End()

	now := s.clock()
	day := scheduler.DayKey(now, s.scheduler.Location())

	generation, cacheable := s.generation(ctx, userID)
	if cacheable {
		cached, err := s.store.Get(ctx, userID, generation, day)
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("cache_hit", true))
			recordCounts(span, cached)
			return cached, nil
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn("failed_to_read_queue_snapshot",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	result, err := s.compute(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "queue computation failed")
		return nil, err
	}
	recordCounts(span, result)

	if cacheable {
		s.saveSnapshot(ctx, userID, generation, result)
	}
	return result, nil
}

// Refresh recomputes the result for userID and replaces any cached snapshot
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*scheduler.Result, error) {
	ctx, span := s.tracer.Start(ctx, "practice.Refresh",
		trace.WithAttributes(attribute.String("user_id", userID.String())),
	)
	defer span.End()

	var generation string
	if s.store != nil {
		var err error
		if generation, err = s.store.Generation(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to read queue snapshot generation: %w", err)
		}
	}

	result, err := s.compute(ctx, userID, s.clock())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "queue computation failed")
		return nil, err
	}
	recordCounts(span, result)

	if s.store != nil {
		if err := s.store.Set(ctx, userID, generation, result); err != nil {
			return nil, fmt.Errorf("failed to store queue snapshot: %w", err)
		}
	}
	return result, nil
}

// Invalidate drops the cached snapshots of userID. It is a no-op without a snapshot store.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate queue snapshot: %w", err)
	}
	return nil
}

// AttemptsChanged drops the user's cached snapshot and, when a job queue is configured,
// schedules a background refresh that expires at the end of the day
func (s *Service) AttemptsChanged(ctx context.Context, userID uuid.UUID, trigger string) error {
	err := s.Invalidate(ctx, userID)

	if s.jobs != nil {
		job := queue.NewRefreshJob(userID, trigger, s.EndOfDay(s.clock()))
		if qErr := s.jobs.Enqueue(ctx, job); qErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to enqueue refresh job: %w", qErr))
		} else {
			s.logger.Debug("enqueued_refresh_snapshot_job",
				zap.String("user_id", userID.String()),
				zap.String("job_id", job.ID.String()),
				zap.String("trigger", trigger),
			)
		}
	}

	return err
}

// compute loads inputs and runs the scheduler against a single now
func (s *Service) compute(ctx context.Context, userID uuid.UUID, now time.Time) (*scheduler.Result, error) {
	var problems []models.Problem
	var attempts []models.Attempt

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if problems, err = s.problems.List(gctx); err != nil {
			return fmt.Errorf("failed to load problems: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if attempts, err = s.attempts.ListByUser(gctx, userID); err != nil {
			return fmt.Errorf("failed to load attempts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := s.scheduler.Run(now, problems, attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to build practice queue: %w", err)
	}

	s.logger.Debug("task_queue_generated",
		zap.String("user_id", userID.String()),
		zap.String("day", result.Day),
		zap.Int("problems", len(problems)),
		zap.Int("attempts", len(attempts)),
		zap.Int("active", len(result.Active)),
	)
	return result, nil
}

// generation reads the snapshot generation before any input is loaded. A result is only
// cached under the generation that was current when its inputs were read.
func (s *Service) generation(ctx context.Context, userID uuid.UUID) (string, bool) {
	if s.store == nil {
		return "", false
	}
	generation, err := s.store.Generation(ctx, userID)
	if err != nil {
		s.logger.Warn("failed_to_read_queue_snapshot_generation",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return "", false
	}
	return generation, true
}

// saveSnapshot caches a freshly computed result, logging instead of failing the request
func (s *Service) saveSnapshot(ctx context.Context, userID uuid.UUID, generation string, result *scheduler.Result) {
	if err := s.store.Set(ctx, userID, generation, result); err != nil {
		s.logger.Warn("failed_to_write_queue_snapshot",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func recordCounts(span trace.Span, result *scheduler.Result) {
	span.SetAttributes(
		attribute.Int("queue.full", len(result.Full)),
		attribute.Int("queue.active", len(result.Active)),
		attribute.Int("queue.overdue", result.Stats.Overdue),
	)
}
