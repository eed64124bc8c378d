package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/shotmatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"SHOTMATCH_CONFIG",
	"SHOTMATCH_ADDR",
	"SHOTMATCH_SHOT_ADDR",
	"SHOTMATCH_REFERENCE_PATH",
	"SHOTMATCH_REFERENCE_URL",
	"SHOTMATCH_DISPATCH_QUEUE_SIZE",
	"SHOTMATCH_DISPATCH_WORKERS",
	"SHOTMATCH_DEDUPE_SIZE",
	"SHOTMATCH_LOG_FORMAT",
	"SHOTMATCH_CORS_ORIGINS",
	"SHOTMATCH_DEFAULT_CLUB",
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shotmatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)
		defer clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":3000")
				convey.So(cfg.ShotAddr, convey.ShouldEqual, ":9211")
				convey.So(cfg.DispatchQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 4096)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SHOTMATCH_ADDR", ":8080")
			_ = os.Setenv("SHOTMATCH_SHOT_ADDR", ":9300")
			_ = os.Setenv("SHOTMATCH_DISPATCH_QUEUE_SIZE", "64")
			_ = os.Setenv("SHOTMATCH_DEDUPE_SIZE", "0")
			_ = os.Setenv("SHOTMATCH_DEFAULT_CLUB", "Driver")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ShotAddr, convey.ShouldEqual, ":9300")
				convey.So(cfg.DispatchQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 0)
				convey.So(cfg.DefaultClub, convey.ShouldEqual, "Driver")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
reference_url: "http://refs.local/pga.csv"
dispatch_workers: 2
cors_origins:
  - "http://localhost:5173"
  - "http://range.local"
`)
			_ = os.Setenv("SHOTMATCH_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ReferenceURL, convey.ShouldEqual, "http://refs.local/pga.csv")
				convey.So(cfg.DispatchWorkers, convey.ShouldEqual, 2)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://localhost:5173", "http://range.local"})
			})

			convey.Convey("And env vars take precedence over the file", func() {
				_ = os.Setenv("SHOTMATCH_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("SHOTMATCH_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When addr is blank", func() {
			_ = os.Setenv("SHOTMATCH_ADDR", "  ")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When the log format is unknown", func() {
			_ = os.Setenv("SHOTMATCH_LOG_FORMAT", "xml")

			_, err := config.Load(ctx)

			convey.Convey("Then validation names the field", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "log_format")
			})
		})

		convey.Convey("When dispatch workers is zero", func() {
			_ = os.Setenv("SHOTMATCH_DISPATCH_WORKERS", "0")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "dispatch_workers must be at least 1")
			})
		})
	})
}
