// Package shotreplay replays reference rows as live shots against a running
// bridge and checks that each one comes back matched to itself.
package shotreplay

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/shotmatch/internal/domain/model"
)

// Config holds configuration for a replay run.
type Config struct {
	ShotURL       string        // Shot listener URL
	APIURL        string        // API listener base URL
	ReferencePath string        // Reference CSV to replay
	NumShots      int           // Rows to replay, 0 for all
	Workers       int           // Concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	Verbose       bool          // Log every mismatch
}

// Stats holds run statistics.
type Stats struct {
	ShotsLoaded    int
	ShotsSubmitted int
	ShotsAccepted  int
	ShotsFailed    int
	Verified       int
	Mismatched     int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

type shotAck struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type batchItem struct {
	ID    int     `json:"id"`
	Speed float64 `json:"speed"`
	VLA   float64 `json:"vla"`
}

type batchResult struct {
	ID json.RawMessage      `json:"id"`
	TM *model.ReferenceShot `json:"tm"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type statusResponse struct {
	OK      bool `json:"ok"`
	TMShots int  `json:"tmShots"`
	Ready   bool `json:"ready"`
}
