package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/shotmatch/internal/adapters/mq/queue"
	"github.com/okian/shotmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func shot(id string) *model.EnrichedShot {
	return &model.EnrichedShot{ID: id, Source: model.SourceLive}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)

		Convey("When shots are enqueued up to capacity", func() {
			So(q.Enqueue(ctx, shot("a")), ShouldBeNil)
			So(q.Enqueue(ctx, shot("b")), ShouldBeNil)

			Convey("Then the next one is rejected as full", func() {
				So(errors.Is(q.Enqueue(ctx, shot("c")), queue.ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then they dequeue in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).ID, ShouldEqual, "a")
				So((<-ch).ID, ShouldEqual, "b")
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then nothing is enqueued", func() {
				So(errors.Is(q.Enqueue(cctx, shot("a")), context.Canceled), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed with shots pending", func() {
			So(q.Enqueue(ctx, shot("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails but pending shots drain before the channel closes", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, shot("b")), queue.ErrClosed), ShouldBeTrue)

				var got []string
				for s := range q.Dequeue(ctx) {
					got = append(got, s.ID)
				}
				So(got, ShouldResemble, []string{"a"})
			})
		})
	})

	Convey("Given a consumer that stops", t, func() {
		q := queue.NewInMemoryQueue()
		cctx, cancel := context.WithCancel(context.Background())
		ch := q.Dequeue(cctx)
		cancel()

		Convey("Then its channel closes", func() {
			select {
			case _, ok := <-ch:
				So(ok, ShouldBeFalse)
			case <-time.After(time.Second):
				So("timeout", ShouldBeEmpty)
			}
		})
	})

	Convey("Given many shots", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		for i := 0; i < 100; i++ {
			So(q.Enqueue(ctx, shot(fmt.Sprintf("s-%d", i))), ShouldBeNil)
		}
		So(q.Close(), ShouldBeNil)

		Convey("Then order is preserved end to end", func() {
			i := 0
			for s := range q.Dequeue(ctx) {
				So(s.ID, ShouldEqual, fmt.Sprintf("s-%d", i))
				i++
			}
			So(i, ShouldEqual, 100)
		})
	})
}
