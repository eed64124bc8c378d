// Package config defines the bridge configuration and its loading rules.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and SHOTMATCH_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"omitempty,oneof=text json"`

	// Addr is the API listener: lookups, status, push channel, docs, metrics.
	Addr string `koanf:"addr" validate:"required"`

	// ShotAddr is the listener the launch-monitor connector posts shots to.
	ShotAddr string `koanf:"shot_addr" validate:"required"`

	// ReferencePath is the reference CSV on disk. Ignored when ReferenceURL is set.
	ReferencePath string `koanf:"reference_path" validate:"required_without=ReferenceURL"`

	// ReferenceURL fetches the reference CSV over HTTP instead of from disk.
	ReferenceURL string `koanf:"reference_url" validate:"omitempty,url"`

	// ReferenceTimeoutMS bounds one HTTP reference fetch.
	ReferenceTimeoutMS int `koanf:"reference_timeout_ms" validate:"min=0"`

	// DefaultClub labels live shots; the launch monitor does not report the club.
	DefaultClub string `koanf:"default_club"`

	// DispatchQueueSize bounds enriched shots waiting for broadcast.
	DispatchQueueSize int `koanf:"dispatch_queue_size" validate:"min=1"`

	// DispatchWorkers is the number of broadcasters. One keeps ingest order.
	DispatchWorkers int `koanf:"dispatch_workers" validate:"min=1"`

	// DedupeSize is how many recent shot identities are remembered. 0 disables.
	DedupeSize int `koanf:"dedupe_size" validate:"min=0"`

	// MaxBatchSize caps one batch lookup or backfill request.
	MaxBatchSize int `koanf:"max_batch_size" validate:"min=1"`

	// LookupRateLimit is requests per minute per IP on lookup endpoints. 0 disables.
	LookupRateLimit int `koanf:"lookup_rate_limit" validate:"min=0"`

	// CORSOrigins is the allowed origin list for both listeners.
	CORSOrigins []string `koanf:"cors_origins"`

	// PushBufferSize is the per-client outbound message buffer.
	PushBufferSize int `koanf:"push_buffer_size" validate:"min=1"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":3000",
		ShotAddr:           ":9211",
		ReferencePath:      "public/pga_precision_10k_v8.csv",
		ReferenceTimeoutMS: 30_000,
		DefaultClub:        "7-Iron",
		DispatchQueueSize:  1024,
		DispatchWorkers:    1,
		DedupeSize:         4096,
		MaxBatchSize:       10_000,
		LookupRateLimit:    1200,
		CORSOrigins:        []string{"*"},
		PushBufferSize:     256,
	}
}
