package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/shotmatch/internal/shotreplay"
	"github.com/okian/shotmatch/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumShots    = 500
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		shotURL   = flag.String("shot-url", "http://localhost:9211", "Shot listener URL")
		apiURL    = flag.String("api-url", "http://localhost:3000", "API listener base URL")
		reference = flag.String("reference", "public/pga_precision_10k_v8.csv", "Reference CSV to replay")
		numShots  = flag.Int("shots", defaultNumShots, "Rows to replay, 0 for all")
		workers   = flag.Int("workers", runtime.NumCPU(), "Concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every mismatch")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		shotreplay.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &shotreplay.Config{
		ShotURL:       *shotURL,
		APIURL:        *apiURL,
		ReferencePath: *reference,
		NumShots:      *numShots,
		Workers:       *workers,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}
	if _, err := shotreplay.Run(ctx, config); err != nil {
		os.Stderr.WriteString("replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
