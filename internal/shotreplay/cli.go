package shotreplay

import "os"

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`shotmatch shot replay
=====================

Posts reference rows to a running bridge as launch-monitor shots, then checks
through the batch lookup that every row matches itself.

Usage:
  go run ./cmd/shot-replay [options]

Options:
  -shot-url string
        Shot listener URL (default "http://localhost:9211")
  -api-url string
        API listener base URL (default "http://localhost:3000")
  -reference string
        Reference CSV to replay (default "public/pga_precision_10k_v8.csv")
  -shots int
        Rows to replay, 0 for all (default 500)
  -workers int
        Concurrent submitters (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -verbose
        Log every mismatch
  -help
        Show this help message

Examples:
  go run ./cmd/shot-replay -shots 0
  go run ./cmd/shot-replay -reference data/ref.csv -workers 8 -verbose
`)
}
