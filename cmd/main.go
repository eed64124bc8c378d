package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/shotmatch/internal/adapters/http/api"
	"github.com/okian/shotmatch/internal/adapters/http/swagger"
	"github.com/okian/shotmatch/internal/adapters/push"
	"github.com/okian/shotmatch/internal/adapters/refsource"
	app "github.com/okian/shotmatch/internal/app"
	"github.com/okian/shotmatch/internal/config"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/internal/supervisor"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Only the custom registry is exposed; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Error(ctx, "bridge stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the bridge and blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		_ = logger.SetFormat(logger.FormatText)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	gate := newReferenceGate(cfg, log)
	// The index is built before the shot listener accepts anything. A failed
	// load leaves it empty and the bridge runs without matches.
	if _, err := gate.Index(ctx); err != nil {
		return err
	}
	go reloadOnHangup(ctx, gate, log)

	hub := push.NewHub(
		push.WithCounter(gate),
		push.WithClientBuffer(cfg.PushBufferSize),
		push.WithAllowedOrigins(cfg.CORSOrigins),
		push.WithLogger(log.Named("push")),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithReferences(gate),
		app.WithPublisher(hub),
		app.WithClub(cfg.DefaultClub),
		app.WithWorkerCount(cfg.DispatchWorkers),
		app.WithQueueSize(cfg.DispatchQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	apiServer := api.NewServer(svc, svc,
		api.WithPush(hub),
		api.WithMaxBatchSize(cfg.MaxBatchSize),
		api.WithLookupRateLimit(cfg.LookupRateLimit),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithShotPort(portOf(cfg.ShotAddr)),
		api.WithLogger(log.Named("api")),
	)
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer.Register(ctx, mux)

	tree := supervisor.NewTree(logger.Slog(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(hub)
	tree.AddMessagingService(supervisor.NewTickerService("system-metrics", metrics.Default().RefreshInterval(), func(context.Context) {
		updateSystemMetrics()
	}))
	tree.AddMessagingService(supervisor.NewTickerService("service-metrics", serviceMetricsInterval, func(context.Context) {
		svc.GetStats()
	}))
	tree.AddAPIService(supervisor.NewHTTPServerService("api-listener", newHTTPServer(cfg.Addr, apiServer.Handler(mux)), shutdownTimeout))
	tree.AddAPIService(supervisor.NewHTTPServerService("shot-listener", newHTTPServer(cfg.ShotAddr, apiServer.ShotHandler()), shutdownTimeout))

	log.Info(ctx, "bridge listening",
		logger.String("addr", cfg.Addr),
		logger.String("shot_addr", cfg.ShotAddr),
		logger.Int("reference_shots", gate.Len()),
	)
	err := tree.Serve(ctx)
	log.Info(context.Background(), "bridge stopped")
	return err
}

// newReferenceGate picks the HTTP source when a URL is configured, else the file.
func newReferenceGate(cfg *config.Config, log logger.Logger) *reference.Gate {
	var src reference.Source = refsource.NewFile(cfg.ReferencePath)
	if cfg.ReferenceURL != "" {
		src = refsource.NewHTTP(cfg.ReferenceURL,
			refsource.WithTimeout(time.Duration(cfg.ReferenceTimeoutMS)*time.Millisecond))
	}
	return reference.NewGate(src, reference.WithGateLogger(log.Named("reference")))
}

// reloadOnHangup reloads the reference data on every SIGHUP.
func reloadOnHangup(ctx context.Context, gate *reference.Gate, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info(ctx, "SIGHUP received, reloading reference data")
			if _, err := gate.Reload(ctx); err != nil {
				log.Warn(ctx, "reference reload interrupted", logger.Error(err))
			}
		}
	}
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// portOf returns the numeric port of a listen address, 0 when there is none.
func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
