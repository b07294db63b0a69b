package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is a decoded job together with the broker delivery that must be settled exactly once
type Message struct {
	job      *Job
	delivery amqp.Delivery
}

var _ MessageInterface = (*Message)(nil)

func newMessage(job *Job, delivery amqp.Delivery) *Message {
	return &Message{job: job, delivery: delivery}
}

// Ack removes the message from the queue
func (m *Message) Ack() error {
	return m.delivery.Ack(false)
}

// Nack returns the message to the queue when requeue is set, and dead-letters it otherwise
func (m *Message) Nack(requeue bool) error {
	return m.delivery.Nack(false, requeue)
}

// GetJob returns the decoded job
func (m *Message) GetJob() *Job {
	return m.job
}

// Redelivered reports whether the broker delivered this message before
func (m *Message) Redelivered() bool {
	return m.delivery.Redelivered
}
