package reference

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const twoRows = "Ball Speed,Launch Angle,Launch Direction,Spin Rate\n120,17,0,6500\n150,11,1,3000\n"

// fakeSource serves body after release is closed and counts opens.
type fakeSource struct {
	body    string
	err     error
	release chan struct{}
	opens   atomic.Int64
}

func newFakeSource(body string, err error) *fakeSource {
	return &fakeSource{body: body, err: err, release: make(chan struct{})}
}

func (s *fakeSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.opens.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *fakeSource) String() string { return "fake" }

func callConcurrently(g *Gate, n int) []*Index {
	out := make([]*Index, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := g.Index(context.Background())
			if err == nil {
				out[i] = idx
			}
		}(i)
	}
	wg.Wait()
	return out
}

func TestGate(t *testing.T) {
	Convey("Given a gate over a slow source", t, func() {
		src := newFakeSource(twoRows, nil)
		g := NewGate(src)

		Convey("When many callers ask before the load finishes", func() {
			done := make(chan []*Index)
			go func() { done <- callConcurrently(g, 32) }()
			time.Sleep(20 * time.Millisecond)
			So(g.Ready(), ShouldBeFalse)
			close(src.release)
			results := <-done

			Convey("Then exactly one fetch ran and everyone got the same index", func() {
				So(src.opens.Load(), ShouldEqual, 1)
				So(g.Fetches(), ShouldEqual, 1)
				for _, idx := range results {
					So(idx, ShouldNotBeNil)
					So(idx, ShouldPointTo, results[0])
				}
				So(results[0].Len(), ShouldEqual, 2)
			})

			Convey("Then later callers get the cached index without fetching", func() {
				idx, err := g.Index(context.Background())
				So(err, ShouldBeNil)
				So(idx, ShouldPointTo, results[0])
				So(src.opens.Load(), ShouldEqual, 1)
				So(g.Len(), ShouldEqual, 2)
			})
		})

		Convey("When a waiter gives up early", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := g.Index(ctx)

			Convey("Then it gets the context error and the load still completes", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				close(src.release)
				idx, err := g.Index(context.Background())
				So(err, ShouldBeNil)
				So(idx.Len(), ShouldEqual, 2)
				So(src.opens.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a gate over a failing source", t, func() {
		src := newFakeSource("", errors.New("connection refused"))
		g := NewGate(src)
		close(src.release)

		results := callConcurrently(g, 8)

		Convey("Then every caller gets the same empty index", func() {
			for _, idx := range results {
				So(idx, ShouldNotBeNil)
				So(idx, ShouldPointTo, results[0])
				So(idx.Len(), ShouldEqual, 0)
			}
			_, ok := results[0].Nearest(120, 17)
			So(ok, ShouldBeFalse)
			So(g.Ready(), ShouldBeTrue)
		})
	})

	Convey("Given a gate over an unparseable source", t, func() {
		src := newFakeSource("just,some,columns\n1,2,3\n", nil)
		close(src.release)
		idx, err := NewGate(src).Index(context.Background())

		Convey("Then the failure is absorbed as an empty index", func() {
			So(err, ShouldBeNil)
			So(idx.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a gate without a source", t, func() {
		idx, err := NewGate(nil).Index(context.Background())

		Convey("Then it resolves to an empty index", func() {
			So(err, ShouldBeNil)
			So(idx.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a static gate", t, func() {
		g := Static(threeRowIndex())

		Convey("Then it is ready without fetching", func() {
			So(g.Ready(), ShouldBeTrue)
			So(g.Len(), ShouldEqual, 3)
			So(g.Fetches(), ShouldEqual, 0)
		})
	})
}

// switchSource returns body on success and err otherwise, without blocking.
type switchSource struct {
	mu   sync.Mutex
	body string
	err  error
}

func (s *switchSource) set(body string, err error) {
	s.mu.Lock()
	s.body, s.err = body, err
	s.mu.Unlock()
}

func (s *switchSource) Open(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *switchSource) String() string { return "switch" }

func TestGateReload(t *testing.T) {
	Convey("Given a loaded gate", t, func() {
		src := &switchSource{body: twoRows}
		g := NewGate(src)
		first, err := g.Index(context.Background())
		So(err, ShouldBeNil)
		So(first.Len(), ShouldEqual, 2)

		Convey("When the reload succeeds", func() {
			src.set(twoRows+"90,20,0,7000\n", nil)
			next, err := g.Reload(context.Background())

			Convey("Then the new index replaces the old one", func() {
				So(err, ShouldBeNil)
				So(next.Len(), ShouldEqual, 3)
				cur, _ := g.Current()
				So(cur, ShouldPointTo, next)
				So(g.Fetches(), ShouldEqual, 2)
			})
		})

		Convey("When the reload fails", func() {
			src.set("", errors.New("gone"))
			next, err := g.Reload(context.Background())

			Convey("Then the previous index stays published", func() {
				So(err, ShouldBeNil)
				So(next, ShouldPointTo, first)
				So(g.Len(), ShouldEqual, 2)
			})
		})
	})
}
