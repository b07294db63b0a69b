// Package scheduler ranks practice problems for a single user.
//
// Given the problem catalog and the user's attempt history, BuildQueue scores
// every problem with a fixed per-difficulty spaced-repetition schedule and
// returns a total ordering (lower priority value = more urgent). FilterActive
// narrows that ranking to what should be surfaced today, and Summarize
// aggregates counts for dashboards.
//
// All functions are pure. The caller captures "now" once per request and
// passes the same instant to every step; calendar-day comparisons use the
// Scheduler's location.
package scheduler
