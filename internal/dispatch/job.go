// Package dispatch moves inbound customer messages from the webhook to the
// pipeline workers through a queue that keeps each customer's messages in order.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidJob is returned when a job has no customer or text.
var ErrInvalidJob = errors.New("dispatch: invalid job")

// Job is one inbound customer message waiting to be processed.
type Job struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId,omitempty"`
	CustomerID   string    `json:"customerId"`
	CustomerName string    `json:"customerName,omitempty"`
	Text         string    `json:"text"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

type queueClient interface {
	// Send publishes body; messages sharing groupID are delivered in order.
	Send(ctx context.Context, groupID, dedupID, body string) error
	// Receive returns messages for one consumer; consumer numbers start at 0.
	Receive(ctx context.Context, consumer, maxMessages, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

func encodeJob(job Job) (Job, string, error) {
	if strings.TrimSpace(job.CustomerID) == "" || strings.TrimSpace(job.Text) == "" {
		return Job{}, "", ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("dispatch: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("dispatch: failed to decode job: %w", err)
	}
	return job, nil
}

// Publisher encodes jobs onto a queue grouped by customer.
type Publisher struct {
	queue queueClient
}

var _ Enqueuer = (*Publisher)(nil)

func NewPublisher(queue queueClient) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	return &Publisher{queue: queue}
}

// Enqueue publishes the job. The webhook event id, when present, doubles as
// the deduplication id so a redelivered event is dropped by FIFO queues.
func (p *Publisher) Enqueue(ctx context.Context, job Job) error {
	job, body, err := encodeJob(job)
	if err != nil {
		return err
	}
	dedup := job.EventID
	if dedup == "" {
		dedup = job.ID
	}
	return p.queue.Send(ctx, job.CustomerID, dedup, body)
}
