// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/okian/shotmatch/internal/domain/enrich"
	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/logger"
)

const (
	defaultMaxBatchSize = 10000
	defaultMaxBodyBytes = 1 << 20
	maxBatchBodyBytes   = 8 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	IngestShot(ctx context.Context, ev enrich.Event) (enrich.Result, error)

	// Lookups wait for the reference data and fail only when ctx does.
	Lookup(ctx context.Context, speed, vla float64) (*model.ReferenceShot, error)
	LookupBatch(ctx context.Context, queries []model.LookupQuery) ([]*model.ReferenceShot, error)
	Backfill(ctx context.Context, shots []model.EnrichedShot) ([]model.EnrichedShot, int, error)

	ReferenceCount() int
	Ready() bool
}

// PushEndpoint is the push channel mounted on the API listener.
type PushEndpoint interface {
	http.Handler
	ClientCount() int
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBatchSize bounds the batch lookup size.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithLookupRateLimit sets the per-IP requests per minute on lookup routes.
func WithLookupRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithCORSOrigins sets the allowed origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithPush mounts the push channel at /ws and on upgrade requests to /.
func WithPush(p PushEndpoint) Option {
	return func(s *Server) { s.push = p }
}

// WithShotPort sets the shot listener port reported by /api/status.
func WithShotPort(port int) Option {
	return func(s *Server) { s.shotPort = port }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the bridge.
type Server struct {
	deps  Dependencies
	stats StatsProvider

	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	push      PushEndpoint
	maxBatch  int
	rateLimit int
	origins   []string
	shotPort  int
	localIP   func() string
	logger    logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		stats:         statsProvider,
		healthHandler: NewHealthHandler(),
		maxBatch:      defaultMaxBatchSize,
		origins:       []string{"*"},
		localIP:       localIPv4,
		logger:        logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statsHandler = NewStatsHandler(statsProvider, s.push)
	return s
}

// Register attaches the API listener routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	limit := RateLimit(s.rateLimit)

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/status", MetricsMiddleware(s.HandleStatus, "status"))
	mux.Handle("/api/tm-lookup", limit(MetricsMiddleware(s.HandleLookup, "tm_lookup")))
	mux.Handle("/api/tm-lookup-batch", limit(MetricsMiddleware(s.HandleLookupBatch, "tm_lookup_batch")))
	mux.Handle("/api/shots/backfill", limit(MetricsMiddleware(s.HandleBackfill, "backfill")))
	if s.push != nil {
		mux.HandleFunc("/ws", MetricsMiddleware(s.push.ServeHTTP, "ws"))
		mux.HandleFunc("/", s.handleRoot)
	}
}

// Handler wraps the API mux with CORS.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return CORS(s.origins)(mux)
}

// ShotHandler is the whole shot listener: POST on any path ingests a shot.
func (s *Server) ShotHandler() http.Handler {
	return CORS(s.origins)(MetricsMiddleware(s.HandleShot, "shot"))
}

// handleRoot sends upgrade requests on / to the push channel.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && isWebSocketUpgrade(r) {
		MetricsMiddleware(s.push.ServeHTTP, "ws")(w, r)
		return
	}
	http.NotFound(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
