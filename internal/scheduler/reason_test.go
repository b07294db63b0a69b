package scheduler

import (
	"encoding/json"
	"testing"
)

func TestReason_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason   Reason
		expected string
	}{
		{Reason{Kind: ReasonNeverAttempted}, "Never attempted"},
		{Reason{Kind: ReasonAttemptedNotSolved}, "Attempted but not solved"},
		{Reason{Kind: ReasonDueToday}, "Due for review today"},
		{Reason{Kind: ReasonOverdue, Days: 1}, "Review overdue by 1 day"},
		{Reason{Kind: ReasonOverdue, Days: 37}, "Review overdue by 37 days"},
		{Reason{Kind: ReasonUpcoming, Days: 1}, "Next review in 1 day"},
		{Reason{Kind: ReasonUpcoming, Days: 2}, "Next review in 2 days"},
		{Reason{}, "Unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()

			if got := tt.reason.String(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestReason_Weight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason   Reason
		expected int
	}{
		{Reason{Kind: ReasonNeverAttempted}, 1000},
		{Reason{Kind: ReasonAttemptedNotSolved}, 900},
		{Reason{Kind: ReasonDueToday}, 800},
		{Reason{Kind: ReasonOverdue, Days: 1}, 849},
		{Reason{Kind: ReasonOverdue, Days: 900}, -50},
		{Reason{Kind: ReasonUpcoming, Days: 12}, 400},
	}

	for _, tt := range tests {
		tt := tt
		if got := tt.reason.weight(); got != tt.expected {
			t.Errorf("Expected weight %d for %+v, got %d", tt.expected, tt.reason, got)
		}
	}
}

func TestReasonKind_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Reason{Kind: ReasonOverdue, Days: 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"kind":"overdue","days":3}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var decoded Reason
	if err := json.Unmarshal([]byte(`{"kind":"due_today"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Kind != ReasonDueToday || decoded.Days != 0 {
		t.Errorf("Expected due_today with no days, got %+v", decoded)
	}

	if err := json.Unmarshal([]byte(`{"kind":"someday"}`), &decoded); err == nil {
		t.Error("Expected error for unknown reason kind")
	}
	if _, err := json.Marshal(Reason{}); err == nil {
		t.Error("Expected error when marshaling an unset reason kind")
	}
}
