package recorder

import "StockScreener/internal/scan"

// Recorder persists finished scans for later analysis.
type Recorder interface {
	RecordScan(res *scan.Result) error
	Close() error
}
