package scheduler

import "github.com/benvon/practice-queue/internal/models"

// DifficultyCounts is a per-difficulty histogram
type DifficultyCounts struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Stats aggregates counts over a queue for dashboard display
type Stats struct {
	Total              int              `json:"total"`
	NeverAttempted     int              `json:"never_attempted"`
	AttemptedNotSolved int              `json:"attempted_not_solved"`
	DueForReview       int              `json:"due_for_review"`
	Overdue            int              `json:"overdue"`
	ByDifficulty       DifficultyCounts `json:"by_difficulty"`
}

// Summarize counts queue items by difficulty and by reason.
// Upcoming items count toward Total and ByDifficulty only.
func Summarize(queue []TaskQueueItem) Stats {
	stats := Stats{Total: len(queue)}

	for _, item := range queue {
		switch item.Problem.Difficulty {
		case models.DifficultyEasy:
			stats.ByDifficulty.Easy++
		case models.DifficultyMedium:
			stats.ByDifficulty.Medium++
		case models.DifficultyHard:
			stats.ByDifficulty.Hard++
		}

		switch item.Reason.Kind {
		case ReasonNeverAttempted:
			stats.NeverAttempted++
		case ReasonAttemptedNotSolved:
			stats.AttemptedNotSolved++
		case ReasonOverdue:
			stats.Overdue++
		case ReasonDueToday:
			stats.DueForReview++
		}
	}

	return stats
}
