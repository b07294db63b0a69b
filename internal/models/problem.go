package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the difficulty tier of a practice problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// ParseDifficulty accepts a tier name in any letter case
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// UnknownTopicName is used when a problem has no resolvable topic
const UnknownTopicName = "Unknown"

// Topic groups problems (e.g. "Arrays", "Dynamic Programming")
type Topic struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Problem represents a practice problem in the catalog
type Problem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Difficulty Difficulty `json:"difficulty"`
	TopicID    string     `json:"topic_id,omitempty"`
	TopicName  string     `json:"topic_name"`
}

// Attempt records one practice session of a user on a problem.
// TimeSpent is in minutes and is informational only.
type Attempt struct {
	ID         string    `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ProblemID  string    `json:"problem_id"`
	Date       time.Time `json:"date"`
	SolvedSolo bool      `json:"solved_solo"`
	TimeSpent  int       `json:"time_spent"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AttemptDetail is an attempt joined with display fields of its problem
type AttemptDetail struct {
	Attempt
	ProblemTitle      string     `json:"problem_title"`
	ProblemURL        string     `json:"problem_url"`
	ProblemDifficulty Difficulty `json:"problem_difficulty"`
	TopicName         string     `json:"topic_name"`
}
