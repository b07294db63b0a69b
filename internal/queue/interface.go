package queue

import (
	"context"
	"time"
)

// MessageInterface is a delivered job awaiting acknowledgement
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Enqueuer publishes jobs. API handlers depend on this narrow view of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the interface for job queues
type JobQueue interface {
	Enqueuer

	// Consume delivers messages until ctx is cancelled. prefetchCount bounds the
	// unacknowledged messages held by this consumer. The caller must Ack or Nack each message.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// HealthCheck verifies the queue connection is usable
	HealthCheck(ctx context.Context) error

	Close() error
}

// DLQPurger drops dead-lettered messages older than retention and reports how many were removed
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
