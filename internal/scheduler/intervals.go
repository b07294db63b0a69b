package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/models"
)

var (
	// ErrUnknownDifficulty is returned when a problem carries a difficulty outside easy/medium/hard
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrNotSolved is returned when an interval is requested for a problem never solved solo
	ErrNotSolved = errors.New("solved count must be at least 1")
)

// reviewIntervals holds the days to wait after the n-th solo solve, per difficulty.
// Counts beyond the table reuse the last entry.
var reviewIntervals = map[models.Difficulty][]int{
	models.DifficultyEasy:   {5, 10, 30, 30, 50, 50},
	models.DifficultyMedium: {3, 5, 10, 20, 30, 40, 50, 50},
	models.DifficultyHard:   {3, 5, 10, 20, 30, 40, 50, 50},
}

// basePriority orders problems within an urgency class. Lower is more urgent.
var basePriority = map[models.Difficulty]int{
	models.DifficultyEasy:   100,
	models.DifficultyMedium: 200,
	models.DifficultyHard:   300,
}

// ReviewInterval returns the review interval in days after the solvedCount-th solo solve
func ReviewInterval(difficulty models.Difficulty, solvedCount int) (int, error) {
	table, ok := reviewIntervals[difficulty]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	if solvedCount < 1 {
		return 0, ErrNotSolved
	}
	return table[min(solvedCount-1, len(table)-1)], nil
}

// BasePriority returns the difficulty component of a problem's priority
func BasePriority(difficulty models.Difficulty) (int, error) {
	p, ok := basePriority[difficulty]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	return p, nil
}

// NextReviewDate returns midnight (in loc) of the day a solved problem becomes due again:
// the calendar day of lastSolved plus the interval for solvedCount.
func NextReviewDate(difficulty models.Difficulty, solvedCount int, lastSolved time.Time, loc *time.Location) (time.Time, error) {
	days, err := ReviewInterval(difficulty, solvedCount)
	if err != nil {
		return time.Time{}, err
	}
	return startOfDay(civilDay(lastSolved, loc).AddDate(0, 0, days), loc), nil
}
