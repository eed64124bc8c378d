// Package service composes the reference gate, enricher, duplicate detector
// and dispatcher into the operations the HTTP layer exposes.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/okian/shotmatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/shotmatch/internal/adapters/mq/worker"
	"github.com/okian/shotmatch/internal/domain/dedupe"
	"github.com/okian/shotmatch/internal/domain/enrich"
	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// References is the reference data the service reads. *reference.Gate
// satisfies it.
type References interface {
	enrich.IndexProvider
	Ready() bool
	Len() int
}

// LookupQuery is one nearest-match request.
type LookupQuery = model.LookupQuery

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	refs      References
	enricher  *enrich.Enricher
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	publisher workerpool.Publisher

	workerCount int
	queueSize   int
	dedupeSize  int
	enrichOpts  []enrich.Option

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithReferences sets the reference data source.
func WithReferences(refs References) Option {
	return func(s *Service) {
		if refs != nil {
			s.refs = refs
		}
	}
}

// WithPublisher sets where dispatched shots go.
func WithPublisher(p workerpool.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWorkerCount sets the number of dispatcher workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the dispatch queue bound.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many shot identities are remembered. 0 disables
// duplicate detection.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithClub sets the club label attached to live shots.
func WithClub(club string) Option {
	return func(s *Service) { s.enrichOpts = append(s.enrichOpts, enrich.WithClub(club)) }
}

// WithClock overrides the shot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.enrichOpts = append(s.enrichOpts, enrich.WithClock(now)) }
}

// WithIDGenerator overrides shot id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.enrichOpts = append(s.enrichOpts, enrich.WithIDGenerator(gen)) }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, *model.EnrichedShot) error { return nil }

// New constructs a Service. Without WithReferences it matches against an
// empty index. The logger must be initialized.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 1,
		queueSize:   1024,
		dedupeSize:  4096,
		publisher:   discardPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refs == nil {
		s.refs = reference.Static(nil)
	}
	return s
}

// Start builds the components and starts the dispatcher. Workers outlive ctx
// so Stop can drain them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.enricher = enrich.New(s.refs, append([]enrich.Option{enrich.WithLogger(s.logger.Named("enrich"))}, s.enrichOpts...)...)
	s.deduper = nil
	if s.dedupeSize > 0 {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.publisher)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "shot service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the dispatcher and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping shot service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatcher did not drain", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "shot service stopped")
}

// IngestShot enriches one launch-monitor message and queues the result for
// broadcast. A full dispatch queue drops the broadcast, not the shot.
func (s *Service) IngestShot(ctx context.Context, ev enrich.Event) (enrich.Result, error) {
	s.mu.RLock()
	started, enricher, deduper, queue := s.started, s.enricher, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return enrich.Result{}, ErrNotStarted
	}

	identity, identified := ev.Identity()
	identified = identified && deduper != nil && !ev.IsHeartbeat()
	if identified && deduper.SeenAndRecord(ctx, identity) {
		metrics.RecordShot(metrics.OutcomeDuplicate)
		s.logger.Debug(ctx, "duplicate shot dropped", logger.String("identity", identity))
		return enrich.Result{Status: enrich.StatusDuplicate}, nil
	}

	res := enricher.Enrich(ctx, ev)
	switch res.Status {
	case enrich.StatusHeartbeat:
		metrics.RecordShot(metrics.OutcomeHeartbeat)
		s.logger.Debug(ctx, "heartbeat received")
		return res, nil
	case enrich.StatusEmpty:
		if identified {
			deduper.Unrecord(ctx, identity)
		}
		metrics.RecordShot(metrics.OutcomeEmpty)
		s.logger.Debug(ctx, "empty shot ignored")
		return res, nil
	}
	if err := ctx.Err(); err != nil && res.Shot.Reference == nil {
		// The wait for reference data was cut short; a resend gets a real match.
		if identified {
			deduper.Unrecord(context.WithoutCancel(ctx), identity)
		}
		return enrich.Result{}, fmt.Errorf("waiting for reference data: %w", err)
	}
	metrics.RecordShot(metrics.OutcomeOK)

	// The shot is enriched; a caller hanging up now must not cost the broadcast.
	if err := queue.Enqueue(context.WithoutCancel(ctx), res.Shot); err != nil {
		if identified {
			// Let a resend go through once the queue has room.
			deduper.Unrecord(ctx, identity)
		}
		s.logger.Warn(ctx, "shot not dispatched", logger.String("id", res.Shot.ID), logger.Error(err))
	}
	return res, nil
}

// Lookup returns the nearest reference shot, or nil when there is none.
// It waits for the reference data to load.
func (s *Service) Lookup(ctx context.Context, speed, vla float64) (*model.ReferenceShot, error) {
	out, err := s.lookup(ctx, metrics.LookupSingle, []LookupQuery{{Speed: speed, VLA: vla}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// LookupBatch resolves each query in order.
func (s *Service) LookupBatch(ctx context.Context, queries []LookupQuery) ([]*model.ReferenceShot, error) {
	return s.lookup(ctx, metrics.LookupBatch, queries)
}

func (s *Service) lookup(ctx context.Context, mode string, queries []LookupQuery) ([]*model.ReferenceShot, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ReferenceShot, len(queries))
	for i, q := range queries {
		start := time.Now()
		m, ok := idx.Nearest(q.Speed, q.VLA)
		metrics.RecordLookup(mode, ok, m.Distance, msSince(start))
		if ok {
			shot := m.Shot
			out[i] = &shot
		}
	}
	return out, nil
}

// Backfill attaches reference matches to stored shots that lack one and
// returns the updated copy with the number of shots filled.
func (s *Service) Backfill(ctx context.Context, shots []model.EnrichedShot) ([]model.EnrichedShot, int, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.EnrichedShot, len(shots))
	copy(out, shots)
	filled := 0
	for i := range out {
		if !out[i].NeedsReference() {
			continue
		}
		start := time.Now()
		m, ok := idx.Nearest(out[i].Measured.Speed, out[i].Measured.VLA)
		metrics.RecordLookup(metrics.LookupBackfill, ok, m.Distance, msSince(start))
		if !ok {
			continue
		}
		ref := m.Shot
		out[i].Reference = &ref
		filled++
	}
	if filled > 0 {
		s.log().Info(ctx, "shots backfilled", logger.Int("shots", len(out)), logger.Int("filled", filled))
	}
	return out, filled, nil
}

// index waits for the reference data. Load failures are absorbed by the
// gate, so only ctx errors come back.
func (s *Service) index(ctx context.Context) (*reference.Index, error) {
	idx, err := s.refs.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for reference data: %w", err)
	}
	return idx, nil
}

// ReferenceCount returns the size of the loaded reference index.
func (s *Service) ReferenceCount() int { return s.refs.Len() }

// Ready reports whether the reference index has loaded.
func (s *Service) Ready() bool { return s.refs.Ready() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"referenceShots": s.refs.Len(),
		"referenceReady": s.refs.Ready(),
	}

	if s.started {
		queueLen := s.queue.Len()
		published, failed := s.pool.Stats()
		stats["queueLength"] = queueLen
		stats["published"] = published
		stats["publishFailed"] = failed
		if s.deduper != nil {
			stats["dedupeEntries"] = s.deduper.Size()
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
		metrics.UpdateReferenceShots(s.refs.Len())
	}
	return stats
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
