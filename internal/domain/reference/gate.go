package reference

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

// Source opens the raw reference dataset.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger used for load results.
func WithGateLogger(l logger.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithGateClock overrides the clock used for load timings.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// load is one in-flight fetch. index is written before done is closed.
type load struct {
	done  chan struct{}
	index *Index
}

// Gate owns the reference index and makes concurrent callers share one load.
// The first caller starts the fetch; callers arriving while it runs wait for
// the same result; later callers get the cached index immediately. A failed
// first load publishes an empty index instead of an error.
type Gate struct {
	source Source
	log    logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	current  *Index
	inflight *load

	fetches atomic.Int64
}

// NewGate creates a gate over source. Nothing is fetched until the first call.
func NewGate(source Source, opts ...GateOption) *Gate {
	g := &Gate{
		source: source,
		log:    logger.Get(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Static returns a gate that is already loaded with index.
func Static(index *Index, opts ...GateOption) *Gate {
	g := NewGate(nil, opts...)
	if index == nil {
		index = &Index{}
	}
	g.current = index
	return g
}

// Index returns the loaded index, starting or joining a load if none has
// completed yet. It only fails when ctx ends before the load does; the load
// itself keeps running for the other waiters.
func (g *Gate) Index(ctx context.Context) (*Index, error) {
	g.mu.Lock()
	if g.current != nil {
		idx := g.current
		g.mu.Unlock()
		return idx, nil
	}
	l := g.startLocked(ctx)
	g.mu.Unlock()
	return l.wait(ctx)
}

// Reload fetches the source again and publishes the result. Callers keep
// seeing the previous index until the new one is in place. A failed reload
// keeps the previous index when there is one.
func (g *Gate) Reload(ctx context.Context) (*Index, error) {
	g.mu.Lock()
	l := g.startLocked(ctx)
	g.mu.Unlock()
	return l.wait(ctx)
}

// Current returns the published index without waiting.
func (g *Gate) Current() (*Index, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.current != nil
}

// Ready reports whether a load has completed.
func (g *Gate) Ready() bool {
	_, ok := g.Current()
	return ok
}

// Len returns the size of the published index, 0 before the first load.
func (g *Gate) Len() int {
	idx, _ := g.Current()
	return idx.Len()
}

// Fetches returns how many times the source has been fetched.
func (g *Gate) Fetches() int64 {
	return g.fetches.Load()
}

func (g *Gate) startLocked(ctx context.Context) *load {
	if g.inflight != nil {
		return g.inflight
	}
	l := &load{done: make(chan struct{})}
	g.inflight = l
	g.fetches.Add(1)
	go g.run(context.WithoutCancel(ctx), l)
	return l
}

func (l *load) wait(ctx context.Context) (*Index, error) {
	select {
	case <-l.done:
		return l.index, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gate) run(ctx context.Context, l *load) {
	idx, ok := g.fetch(ctx)

	g.mu.Lock()
	if ok || g.current == nil {
		g.current = idx
	}
	l.index = g.current
	g.inflight = nil
	size := g.current.Len()
	g.mu.Unlock()

	metrics.UpdateReferenceShots(size)
	metrics.UpdateReferenceReady(true)
	close(l.done)
}

// fetch never returns a nil index; ok is false when the source failed.
func (g *Gate) fetch(ctx context.Context) (*Index, bool) {
	start := g.now()
	if g.source == nil {
		g.log.Warn(ctx, "reference load skipped", logger.Error(ErrNoSource))
		metrics.RecordReferenceLoad("failed", 0, 0)
		return &Index{}, false
	}
	where := g.source.String()
	g.log.Info(ctx, "reference load started", logger.String("source", where))

	rc, err := g.source.Open(ctx)
	if err != nil {
		g.fail(ctx, where, start, err)
		return &Index{}, false
	}
	defer func() { _ = rc.Close() }()

	idx, stats, err := Parse(rc)
	if err != nil {
		g.fail(ctx, where, start, err)
		return &Index{}, false
	}

	took := g.now().Sub(start)
	metrics.RecordReferenceLoad("ok", took, stats.Skipped)
	g.log.Info(ctx, "reference load complete",
		logger.String("source", where),
		logger.Int("shots", stats.Accepted),
		logger.Int("skipped", stats.Skipped),
		logger.Duration("took", took),
	)
	return idx, true
}

func (g *Gate) fail(ctx context.Context, where string, start time.Time, err error) {
	took := g.now().Sub(start)
	metrics.RecordReferenceLoad("failed", took, 0)
	metrics.RecordErrorByComponent("reference", "load")
	g.log.Warn(ctx, "reference load failed, continuing without reference data",
		logger.String("source", where),
		logger.Duration("took", took),
		logger.Error(err),
	)
}
