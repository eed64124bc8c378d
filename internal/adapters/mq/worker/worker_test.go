package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/shotmatch/internal/adapters/mq/queue"
	worker "github.com/okian/shotmatch/internal/adapters/mq/worker"
	model "github.com/okian/shotmatch/internal/domain/model"
	logging "github.com/okian/shotmatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logging.Init(); err != nil {
		panic(err)
	}
	_ = logging.SetLevelString("error")
	os.Exit(m.Run())
}

// recordingPublisher keeps published shot ids and fails ids listed in fail.
type recordingPublisher struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]bool
	hold chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{fail: map[string]bool{}}
}

func (p *recordingPublisher) Publish(ctx context.Context, shot *model.EnrichedShot) error {
	if p.hold != nil {
		select {
		case <-p.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[shot.ID] {
		return errors.New("sink unavailable")
	}
	p.ids = append(p.ids, shot.ID)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func enqueueN(q *queue.InMemoryQueue, n int) {
	for i := 0; i < n; i++ {
		_ = q.Enqueue(context.Background(), &model.EnrichedShot{ID: fmt.Sprintf("live-%d", i)})
	}
}

func TestPool(t *testing.T) {
	convey.Convey("Given a single-worker pool", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		pub := newRecordingPublisher()
		pool := worker.NewPool(1, q, pub)
		convey.So(pool.Size(), convey.ShouldEqual, 1)

		convey.Convey("When shots are queued and the pool shuts down", func() {
			pool.Start(context.Background())
			enqueueN(q, 10)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every shot is broadcast in ingest order", func() {
				convey.So(err, convey.ShouldBeNil)
				want := make([]string, 10)
				for i := range want {
					want[i] = fmt.Sprintf("live-%d", i)
				}
				convey.So(pub.published(), convey.ShouldResemble, want)
				published, failed := pool.Stats()
				convey.So(published, convey.ShouldEqual, 10)
				convey.So(failed, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the sink rejects one shot", func() {
			pub.fail["live-1"] = true
			pool.Start(context.Background())
			enqueueN(q, 3)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the others still go out", func() {
				convey.So(pub.published(), convey.ShouldResemble, []string{"live-0", "live-2"})
				_, failed := pool.Stats()
				convey.So(failed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the sink hangs past the shutdown deadline", func() {
			pub.hold = make(chan struct{})
			pool.Start(context.Background())
			enqueueN(q, 2)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)
			close(pub.hold)

			convey.Convey("Then shutdown reports the timeout", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})

	convey.Convey("Given a pool asked for zero workers", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newRecordingPublisher())

		convey.Convey("Then it runs one", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 1)
		})
	})
}

func TestWorkerStopsOnCancel(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, newRecordingPublisher(), worker.WithName("w-test"))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		convey.Convey("When its context is cancelled", func() {
			cancel()

			convey.Convey("Then shutdown completes promptly", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

// ctxQueue remembers the context its reader was started with.
type ctxQueue struct {
	ctx chan context.Context
}

func (q *ctxQueue) Dequeue(ctx context.Context) <-chan queue.Shot {
	q.ctx <- ctx
	return make(chan queue.Shot)
}

func TestWorkerReleasesQueueReader(t *testing.T) {
	convey.Convey("Given a worker whose context never ends", t, func() {
		q := &ctxQueue{ctx: make(chan context.Context, 1)}
		w := worker.NewInMemoryWorker(q, newRecordingPublisher())
		go w.Run(context.WithoutCancel(context.Background()))
		readerCtx := <-q.ctx

		convey.Convey("When it is shut down", func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)

			convey.Convey("Then the queue reader is cancelled too", func() {
				select {
				case <-readerCtx.Done():
				case <-time.After(time.Second):
				}
				convey.So(readerCtx.Err(), convey.ShouldEqual, context.Canceled)
			})
		})
	})
}
