// Package queue holds enriched shots between ingest and broadcast.
//
// Ingest must never block on slow push clients, so shots go through a
// bounded in-memory queue that dispatcher workers drain.
package queue

import (
	"context"
	"sync"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 1024
)

// Shot is the payload flowing through the queue.
type Shot = *model.EnrichedShot

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a shot without blocking. It returns ErrFull or ErrClosed
	// when the shot was not queued.
	Enqueue(ctx context.Context, s Shot) error

	// Dequeue returns a channel that receives shots in enqueue order.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Shot

	// Len returns the current number of queued shots.
	Len() int

	// Close stops accepting shots. Queued shots can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	shots    chan Shot
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.shots = make(chan Shot, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a shot to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Shot) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.shots <- s:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.shots))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive shots as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Shot {
	out := make(chan Shot)
	go func() {
		defer close(out)
		for {
			var s Shot
			var ok bool
			select {
			case s, ok = <-q.shots:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
			select {
			case out <- s:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.shots))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued shots.
func (q *InMemoryQueue) Len() int {
	size := len(q.shots)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops the queue accepting shots.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.shots)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
