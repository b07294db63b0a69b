package scheduler

import (
	"time"

	"github.com/benvon/practice-queue/internal/models"
)

// FilterActive returns the items of queue that need attention now, preserving their order.
//
// A problem with any attempt today that was not solved solo is dropped for the rest of the day.
// Otherwise never-solved problems are always kept and solved problems are kept once due.
func (s *Scheduler) FilterActive(now time.Time, queue []TaskQueueItem, attempts []models.Attempt) []TaskQueueItem {
	engagedToday := make(map[string]struct{})
	for _, a := range attempts {
		if a.SolvedSolo {
			continue
		}
		if SameDay(a.Date, now, s.loc) {
			engagedToday[a.ProblemID] = struct{}{}
		}
	}

	active := make([]TaskQueueItem, 0, len(queue))
	for _, item := range queue {
		if _, skip := engagedToday[item.Problem.ID]; skip {
			continue
		}
		if item.SolvedCount == 0 {
			active = append(active, item)
			continue
		}
		if item.NextReviewDate != nil && !now.Before(*item.NextReviewDate) {
			active = append(active, item)
		}
	}
	return active
}

// Result is the output of one scheduling pass
type Result struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Day         string          `json:"day"`
	Full        []TaskQueueItem `json:"full"`
	Active      []TaskQueueItem `json:"active"`
	Stats       Stats           `json:"stats"`
}

// Run builds the full queue, filters it and summarizes the active items, all against the same now
func (s *Scheduler) Run(now time.Time, problems []models.Problem, attempts []models.Attempt) (*Result, error) {
	full, err := s.BuildQueue(now, problems, attempts)
	if err != nil {
		return nil, err
	}
	active := s.FilterActive(now, full, attempts)
	return &Result{
		GeneratedAt: now,
		Day:         DayKey(now, s.loc),
		Full:        full,
		Active:      active,
		Stats:       Summarize(active),
	}, nil
}
