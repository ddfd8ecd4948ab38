package dispatch

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a queueClient backed by buffered channels, one per shard.
// A customer always hashes to the same shard, and consumer i reads shard
// i modulo the shard count, so one customer's messages are consumed in order
// by a single goroutine when workers equal shards.
type MemoryQueue struct {
	shards []chan queueMessage
}

// NewMemoryQueue creates a MemoryQueue with the given shard count and per-shard buffer.
func NewMemoryQueue(shards, buffer int) *MemoryQueue {
	if shards <= 0 {
		shards = 1
	}
	if buffer <= 0 {
		buffer = 128
	}
	q := &MemoryQueue{shards: make([]chan queueMessage, shards)}
	for i := range q.shards {
		q.shards[i] = make(chan queueMessage, buffer)
	}
	return q
}

// Shards is the number of independent ordered lanes.
func (q *MemoryQueue) Shards() int { return len(q.shards) }

func (q *MemoryQueue) shardFor(groupID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(groupID))
	return int(h.Sum32() % uint32(len(q.shards)))
}

// Send enqueues a payload or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, groupID, _ string, body string) error {
	msg := queueMessage{ID: uuid.NewString(), Body: body, ReceiptHandle: uuid.NewString()}
	select {
	case q.shards[q.shardFor(groupID)] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available on the consumer's shard, ctx is
// done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, consumer, maxMessages, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	if consumer < 0 {
		consumer = -consumer
	}
	ch := q.shards[consumer%len(q.shards)]

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case msg := <-ch:
		return collect(ch, msg, maxMessages), nil
	}
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}

func collect(ch chan queueMessage, first queueMessage, max int) []queueMessage {
	messages := make([]queueMessage, 0, max)
	messages = append(messages, first)
	for len(messages) < max {
		select {
		case msg := <-ch:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
	return messages
}
