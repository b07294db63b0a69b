// Package workers runs the background jobs that keep queue snapshots warm.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// baseRetryDelay is doubled on every retry of a failed job
const baseRetryDelay = 5 * time.Second

// Refresher recomputes and caches one user's queue
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) (*scheduler.Result, error)
}

// SnapshotRefresher processes refresh_snapshot jobs
type SnapshotRefresher struct {
	refresher Refresher
	jobQueue  queue.Enqueuer // For re-enqueueing failed jobs with delays
	logger    *zap.Logger
	clock     func() time.Time
}

// NewSnapshotRefresher creates a new snapshot refresher. jobQueue may be nil,
// in which case failed jobs are dead-lettered on their first failure.
func NewSnapshotRefresher(refresher Refresher, jobQueue queue.Enqueuer, logger *zap.Logger) *SnapshotRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRefresher{
		refresher: refresher,
		jobQueue:  jobQueue,
		logger:    logger,
		clock:     time.Now,
	}
}

// ProcessJob processes a message and settles it. The returned error is for logging only;
// the message has already been acked or nacked.
func (w *SnapshotRefresher) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	now := w.clock()

	if err := job.Validate(); err != nil {
		// Malformed jobs go straight to the DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_invalid_job", zap.Error(nackErr))
		}
		return fmt.Errorf("invalid job %s: %w", job.ID, err)
	}

	if !job.ShouldProcessAt(now) {
		// A job past its NotAfter describes a day that is already over
		w.logger.Debug("skipping_job_outside_window",
			zap.String("job_id", job.ID.String()),
			zap.Bool("expired", job.NotAfter != nil && now.After(*job.NotAfter)),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack skipped job: %w", ackErr)
		}
		return nil
	}

	result, err := w.refresher.Refresh(ctx, job.UserID)
	if err != nil {
		return w.handleJobError(ctx, msg, job, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}

	w.logger.Info("refreshed_queue_snapshot",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", job.UserID.String()),
		zap.String("trigger", job.Trigger),
		zap.String("day", result.Day),
		zap.Int("active", len(result.Active)),
	)
	return nil
}

// handleJobError retries with exponential delay while the job has budget left, then dead-letters it
func (w *SnapshotRefresher) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, jobErr error) error {
	if !job.CanRetry() {
		w.logger.Error("job_failed_sending_to_dlq",
			zap.String("job_id", job.ID.String()),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(jobErr),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", jobErr)
	}

	// A broker requeue redelivers the original body, so the retry count could never advance
	if w.jobQueue == nil {
		w.logger.Error("job_failed_no_retry_queue_sending_to_dlq",
			zap.String("job_id", job.ID.String()),
			zap.Error(jobErr),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (no retry queue): %w", jobErr)
	}

	retry := *job
	retry.IncrementRetry()
	notBefore := w.clock().Add(RetryDelay(job.RetryCount))
	retry.NotBefore = &notBefore

	if enqueueErr := w.jobQueue.Enqueue(ctx, &retry); enqueueErr != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed, failed to re-enqueue: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		w.logger.Warn("failed_to_ack_job_before_retry", zap.Error(ackErr))
	}

	w.logger.Warn("job_failed_will_retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Time("not_before", notBefore),
		zap.Error(jobErr),
	)
	return fmt.Errorf("job failed (will retry): %w", jobErr)
}

// RetryDelay returns the delay before retry number retryCount+1
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 10 {
		retryCount = 10
	}
	return baseRetryDelay << retryCount
}
