package scheduler

import (
	"fmt"
)

// ReasonKind classifies why a problem sits where it does in the queue
type ReasonKind int

const (
	ReasonNeverAttempted ReasonKind = iota + 1
	ReasonAttemptedNotSolved
	ReasonDueToday
	ReasonOverdue
	ReasonUpcoming
)

// Situational weights added on top of the difficulty base priority
const (
	weightNeverAttempted     = 1000
	weightAttemptedNotSolved = 900
	weightDueToday           = 800
	weightOverdue            = 850
	weightUpcoming           = 400
)

var reasonKindNames = map[ReasonKind]string{
	ReasonNeverAttempted:     "never_attempted",
	ReasonAttemptedNotSolved: "attempted_not_solved",
	ReasonDueToday:           "due_today",
	ReasonOverdue:            "overdue",
	ReasonUpcoming:           "upcoming",
}

// String returns the machine-readable name of the kind
func (k ReasonKind) String() string {
	if name, ok := reasonKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (k ReasonKind) MarshalText() ([]byte, error) {
	if _, ok := reasonKindNames[k]; !ok {
		return nil, fmt.Errorf("invalid reason kind: %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ReasonKind) UnmarshalText(text []byte) error {
	for kind, name := range reasonKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("invalid reason kind: %q", string(text))
}

// Reason is the classification of a queue item.
// Days is the overdue count for ReasonOverdue and the days until due for ReasonUpcoming.
type Reason struct {
	Kind ReasonKind `json:"kind"`
	Days int        `json:"days,omitempty"`
}

// weight returns the situational weight for the reason.
// The overdue weight is unclamped and goes negative past 850 days.
func (r Reason) weight() int {
	switch r.Kind {
	case ReasonNeverAttempted:
		return weightNeverAttempted
	case ReasonAttemptedNotSolved:
		return weightAttemptedNotSolved
	case ReasonDueToday:
		return weightDueToday
	case ReasonOverdue:
		return weightOverdue - r.Days
	default:
		return weightUpcoming
	}
}

// String renders the display text shown to users
func (r Reason) String() string {
	switch r.Kind {
	case ReasonNeverAttempted:
		return "Never attempted"
	case ReasonAttemptedNotSolved:
		return "Attempted but not solved"
	case ReasonDueToday:
		return "Due for review today"
	case ReasonOverdue:
		return fmt.Sprintf("Review overdue by %d %s", r.Days, pluralDays(r.Days))
	case ReasonUpcoming:
		return fmt.Sprintf("Next review in %d %s", r.Days, pluralDays(r.Days))
	default:
		return "Unknown"
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
