package shotreplay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/pkg/logger"
)

// ErrMismatch is returned when any replayed row matched something other than itself.
var ErrMismatch = errors.New("replayed shots did not match their reference rows")

const percentageMultiplier = 100

// Run executes the complete replay.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	if config.Workers < 1 {
		config.Workers = 1
	}

	log.Info(ctx, "starting shot replay",
		logger.String("shotURL", config.ShotURL),
		logger.String("apiURL", config.APIURL),
		logger.String("reference", config.ReferencePath),
		logger.Int("shots", config.NumShots),
		logger.Int("workers", config.Workers))

	if err := checkBridge(ctx, config); err != nil {
		return stats, fmt.Errorf("bridge check failed: %w", err)
	}

	rows, err := loadRows(config)
	if err != nil {
		return stats, fmt.Errorf("reference load failed: %w", err)
	}
	stats.ShotsLoaded = len(rows)

	submitShots(ctx, config, rows, stats)

	got, err := lookupAll(ctx, config, rows)
	if err != nil {
		return stats, err
	}
	mismatches := verifyMatches(ctx, config, rows, got, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if stats.ShotsFailed > 0 {
		return stats, fmt.Errorf("%d of %d shots were not accepted", stats.ShotsFailed, stats.ShotsSubmitted)
	}
	if len(mismatches) > 0 {
		return stats, fmt.Errorf("%w: %d of %d, first %s", ErrMismatch, len(mismatches), len(rows), mismatches[0])
	}
	log.Info(ctx, "replay completed successfully")
	return stats, nil
}

// checkBridge waits for a positive reference count on the status endpoint.
func checkBridge(ctx context.Context, config *Config) error {
	var status statusResponse
	if err := newHTTPClient(config.Timeout).getJSON(ctx, config.APIURL+"/api/status", &status); err != nil {
		return fmt.Errorf("failed to reach bridge: %w", err)
	}
	if !status.OK || !status.Ready {
		return errors.New("bridge reference data is not loaded")
	}
	logger.Get().Info(ctx, "bridge is ready", logger.Int("tmShots", status.TMShots))
	return nil
}

func loadRows(config *Config) ([]model.ReferenceShot, error) {
	f, err := os.Open(config.ReferencePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx, _, err := reference.Parse(f)
	if err != nil {
		return nil, err
	}
	rows := idx.Shots()
	if config.NumShots > 0 && config.NumShots < len(rows) {
		rows = rows[:config.NumShots]
	}
	return rows, nil
}

func displayFinalStats(stats *Stats) {
	var verifiedRate, shotsPerSecond float64
	if stats.ShotsLoaded > 0 {
		verifiedRate = float64(stats.Verified) / float64(stats.ShotsLoaded) * percentageMultiplier
	}
	if stats.Duration > 0 {
		shotsPerSecond = float64(stats.ShotsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("shotsLoaded", stats.ShotsLoaded),
		logger.Int("shotsSubmitted", stats.ShotsSubmitted),
		logger.Int("shotsAccepted", stats.ShotsAccepted),
		logger.Int("shotsFailed", stats.ShotsFailed),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatched", stats.Mismatched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("verifiedRate", verifiedRate),
		logger.Float64("shotsPerSecond", shotsPerSecond))
}
