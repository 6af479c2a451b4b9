// Package queue provides the bounded buffer between the ingestion pipeline
// and the reconcile workers.
//
// Records land here only when their leaderboard fold failed after the ledger
// append committed; workers drain the queue and retry the fold.
package queue

import (
	"context"
	"sync"

	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/pkg/metrics"
)

// defaultCapacity bounds the queue when no option is given.
const defaultCapacity = 10_000

// Task is one pending leaderboard reconciliation.
type Task struct {
	Record          model.ScoreRecord
	SubmissionCount int
	Attempts        int
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns a channel receiving tasks as they become available.
	// The channel closes when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the number of queued tasks.
	Len(ctx context.Context) int

	// Close stops accepting tasks and lets consumers drain the remainder.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the queue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of buffered tasks.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.tasks))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.tasks)
}

// Close implements Queue.Close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
