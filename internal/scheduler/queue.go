package scheduler

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/benvon/practice-queue/internal/models"
	"go.uber.org/zap"
)

// TaskQueueItem pairs a problem with its computed scheduling metadata
type TaskQueueItem struct {
	Problem             models.Problem  `json:"problem"`
	Priority            int             `json:"priority"`
	Reason              Reason          `json:"reason"`
	LastAttempt         *models.Attempt `json:"last_attempt,omitempty"`
	SolvedCount         int             `json:"solved_count"`
	NextReviewDate      *time.Time      `json:"next_review_date,omitempty"`
	DaysSinceLastSolved *int            `json:"days_since_last_solved,omitempty"`
}

// Scheduler computes practice queues. It holds configuration only and is safe for concurrent use.
type Scheduler struct {
	loc    *time.Location
	logger *zap.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLocation sets the time zone that defines calendar-day boundaries. Nil is ignored.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets a logger for debug diagnostics. Nil is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler. Days are evaluated in UTC unless WithLocation is given.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		loc:    time.UTC,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the time zone used for calendar-day boundaries
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// BuildQueue scores every problem and returns them ordered by ascending priority,
// ties broken by ascending problem id. Attempts referencing unknown problems are ignored.
func (s *Scheduler) BuildQueue(now time.Time, problems []models.Problem, attempts []models.Attempt) ([]TaskQueueItem, error) {
	byProblem := groupByProblem(attempts)
	today := civilDay(now, s.loc)

	queue := make([]TaskQueueItem, 0, len(problems))
	known := make(map[string]struct{}, len(problems))
	for _, p := range problems {
		known[p.ID] = struct{}{}
		item, err := s.score(now, today, p, byProblem[p.ID])
		if err != nil {
			return nil, fmt.Errorf("failed to score problem %s: %w", p.ID, err)
		}
		queue = append(queue, item)
	}

	if orphans := countOrphans(byProblem, known); orphans > 0 {
		s.logger.Debug("orphan_attempts_ignored",
			zap.Int("orphan_attempts", orphans),
		)
	}

	slices.SortStableFunc(queue, func(a, b TaskQueueItem) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Problem.ID, b.Problem.ID)
	})

	return queue, nil
}

func (s *Scheduler) score(now, today time.Time, problem models.Problem, attempts []models.Attempt) (TaskQueueItem, error) {
	base, err := BasePriority(problem.Difficulty)
	if err != nil {
		return TaskQueueItem{}, err
	}

	item := TaskQueueItem{
		Problem:     problem,
		LastAttempt: latestAttempt(attempts),
	}

	var lastSolved *models.Attempt
	for i := range attempts {
		if !attempts[i].SolvedSolo {
			continue
		}
		item.SolvedCount++
		if lastSolved == nil || attempts[i].Date.After(lastSolved.Date) {
			lastSolved = &attempts[i]
		}
	}

	switch {
	case len(attempts) == 0:
		item.Reason = Reason{Kind: ReasonNeverAttempted}
	case item.SolvedCount == 0:
		item.Reason = Reason{Kind: ReasonAttemptedNotSolved}
	default:
		next, err := NextReviewDate(problem.Difficulty, item.SolvedCount, lastSolved.Date, s.loc)
		if err != nil {
			return TaskQueueItem{}, err
		}
		since := daysBetween(civilDay(lastSolved.Date, s.loc), today)
		item.NextReviewDate = &next
		item.DaysSinceLastSolved = &since

		dueDay := civilDay(next, s.loc)
		if !now.Before(next) {
			if overdue := daysBetween(dueDay, today); overdue > 0 {
				item.Reason = Reason{Kind: ReasonOverdue, Days: overdue}
			} else {
				item.Reason = Reason{Kind: ReasonDueToday}
			}
		} else {
			item.Reason = Reason{Kind: ReasonUpcoming, Days: daysBetween(today, dueDay)}
		}
	}

	item.Priority = base + item.Reason.weight()
	return item, nil
}

func groupByProblem(attempts []models.Attempt) map[string][]models.Attempt {
	grouped := make(map[string][]models.Attempt)
	for _, a := range attempts {
		grouped[a.ProblemID] = append(grouped[a.ProblemID], a)
	}
	return grouped
}

func countOrphans(byProblem map[string][]models.Attempt, known map[string]struct{}) int {
	n := 0
	for id, attempts := range byProblem {
		if _, ok := known[id]; !ok {
			n += len(attempts)
		}
	}
	return n
}

// latestAttempt returns a copy of the most recent attempt of any outcome.
// Attempts sharing the latest date are ordered by id; the greatest id wins.
func latestAttempt(attempts []models.Attempt) *models.Attempt {
	if len(attempts) == 0 {
		return nil
	}
	latest := attempts[0]
	for _, a := range attempts[1:] {
		if a.Date.After(latest.Date) || (a.Date.Equal(latest.Date) && a.ID > latest.ID) {
			latest = a
		}
	}
	return &latest
}
