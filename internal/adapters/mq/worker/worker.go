// Package worker drains the dispatch queue and hands enriched shots to the
// broadcast sink.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/shotmatch/internal/adapters/mq/queue"
	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	publishTimeout      = 5 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Publisher delivers an enriched shot to subscribers.
type Publisher interface {
	Publish(ctx context.Context, shot *model.EnrichedShot) error
}

// Queue defines how workers receive shots.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Shot
}

// Worker publishes shots read from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string

	published atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: publisher,
		name:      "dispatcher",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Ends the Dequeue goroutine when the loop returns, even if ctx never ends.
	dqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	shots := w.queue.Dequeue(dqCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case shot, ok := <-shots:
			if !ok {
				return
			}
			if err := w.publish(ctx, shot); err != nil {
				w.logger.Warn(ctx, "shot not broadcast",
					logger.String("worker", w.name),
					logger.String("id", shot.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Published returns how many shots this worker delivered.
func (w *InMemoryWorker) Published() int64 { return w.published.Load() }

// Failed returns how many publishes failed.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) publish(ctx context.Context, shot *model.EnrichedShot) error {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := w.publisher.Publish(pctx, shot); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("dispatcher", "publish")
		return fmt.Errorf("publish %s: %w", shot.ID, err)
	}
	w.published.Add(1)
	return nil
}

// Pool manages the dispatcher workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers reading q. Fewer than one means one.
func NewPool(workerCount int, q Queue, publisher Publisher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("dispatcher-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("dispatcher-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, publisher, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Stats returns delivered and failed totals across workers.
func (p *Pool) Stats() (published, failed int64) {
	for _, w := range p.workers {
		published += w.Published()
		failed += w.Failed()
	}
	return published, failed
}

// Shutdown closes the queue and lets workers broadcast what is left. Workers
// still busy when ctx (or the pool timeout) ends are told to stop and left
// to exit on their own.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut++
			w.stop()
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		p.logger.Warn(ctx, "dispatcher drain timed out", logger.Int("workers", timedOut))
		return fmt.Errorf("dispatcher drain timed out: %w", drainCtx.Err())
	}
	return nil
}
