package shotreplay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/shotmatch/internal/domain/enrich"
	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/logger"
)

const (
	deviceID       = "shot-replay"
	reportInterval = time.Second
	lookupChunk    = 1000
)

// httpClient wraps http.Client with JSON helpers.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *httpClient) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// shotMessage renders a reference row as a launch-monitor shot.
func shotMessage(n int, row model.ReferenceShot) enrich.Event {
	speed, vla, hla, spin := row.Speed, row.VLA, row.HLA, row.Spin
	return enrich.Event{
		DeviceID:        deviceID,
		Units:           "Yards",
		ShotNumber:      n,
		APIVersion:      "1",
		BallData:        &enrich.BallData{Speed: &speed, VLA: &vla, HLA: &hla, TotalSpin: &spin},
		ShotDataOptions: &enrich.ShotDataOptions{ContainsBallData: true, LaunchMonitorIsReady: true, LaunchMonitorBallDetected: true},
	}
}

// submitShots posts rows concurrently, numbering them from 1.
func submitShots(ctx context.Context, config *Config, rows []model.ReferenceShot, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting shots", logger.Int("shots", len(rows)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	var accepted, failed, submitted atomic.Int64
	var lastReport atomic.Int64

	type job struct {
		n   int
		row model.ReferenceShot
	}
	jobs := make(chan job, config.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				var ack shotAck
				err := client.postJSON(ctx, config.ShotURL, shotMessage(j.n, j.row), &ack)
				submitted.Add(1)
				if err != nil || ack.Status != string(enrich.StatusOK) {
					failed.Add(1)
					if config.Verbose {
						log.Warn(ctx, "shot not accepted", logger.Int("shot", j.n), logger.String("status", ack.Status), logger.Error(err))
					}
				} else {
					accepted.Add(1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Any("submitted", submitted.Load()),
						logger.Int("total", len(rows)),
						logger.Any("failed", failed.Load()))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, row := range rows {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{n: i + 1, row: row}:
			}
		}
	}()
	wg.Wait()

	stats.ShotsSubmitted = int(submitted.Load())
	stats.ShotsAccepted = int(accepted.Load())
	stats.ShotsFailed = int(failed.Load())
	log.Info(ctx, "shot submission completed",
		logger.Int("accepted", stats.ShotsAccepted),
		logger.Int("failed", stats.ShotsFailed))
}

// lookupAll resolves every row through the batch endpoint in chunks.
func lookupAll(ctx context.Context, config *Config, rows []model.ReferenceShot) ([]*model.ReferenceShot, error) {
	client := newHTTPClient(config.Timeout)
	out := make([]*model.ReferenceShot, 0, len(rows))
	for start := 0; start < len(rows); start += lookupChunk {
		end := min(start+lookupChunk, len(rows))
		items := make([]batchItem, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, batchItem{ID: i, Speed: rows[i].Speed, VLA: rows[i].VLA})
		}
		var resp batchResponse
		if err := client.postJSON(ctx, config.APIURL+"/api/tm-lookup-batch", items, &resp); err != nil {
			return nil, fmt.Errorf("batch lookup: %w", err)
		}
		if len(resp.Results) != len(items) {
			return nil, fmt.Errorf("batch lookup returned %d results for %d items", len(resp.Results), len(items))
		}
		for _, r := range resp.Results {
			out = append(out, r.TM)
		}
	}
	return out, nil
}
