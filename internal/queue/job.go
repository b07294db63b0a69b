package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRefreshSnapshot recomputes one user's queue snapshot and stores it in the cache
	JobTypeRefreshSnapshot JobType = "refresh_snapshot"
)

// Triggers recorded on refresh jobs
const (
	TriggerAttemptCreated = "attempt_created"
	TriggerAttemptUpdated = "attempt_updated"
	TriggerAttemptDeleted = "attempt_deleted"
	TriggerNightly        = "nightly"
	TriggerCatalogImport  = "catalog_import"
)

// DefaultMaxRetries is the retry budget of a new job
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     uuid.UUID  `json:"user_id"`
	Trigger    string     `json:"trigger,omitempty"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewRefreshJob creates a snapshot refresh job for userID. A zero expiresAt means the job never expires.
func NewRefreshJob(userID uuid.UUID, trigger string, expiresAt time.Time) *Job {
	job := NewJob(JobTypeRefreshSnapshot, userID)
	job.Trigger = trigger
	if !expiresAt.IsZero() {
		job.NotAfter = &expiresAt
	}
	return job
}

// Validate reports whether the job can be processed at all
func (j *Job) Validate() error {
	if j.Type != JobTypeRefreshSnapshot {
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	if j.UserID == uuid.Nil {
		return errors.New("job has no user")
	}
	return nil
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	return j.ShouldProcessAt(time.Now())
}

// ShouldProcessAt checks if now falls inside the job's processing window
func (j *Job) ShouldProcessAt(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.expiredAt(now)
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	return j.expiredAt(time.Now())
}

func (j *Job) expiredAt(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
