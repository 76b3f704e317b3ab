package model

import "time"

// RunLedgerExport is the top-level JSON structure for run history export,
// with summary counters ahead of the per-run records.
type RunLedgerExport struct {
	ExportedAt   time.Time `json:"exported_at"`
	RunCount     int       `json:"run_count"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	AvgLatencyMs int64     `json:"avg_latency_ms"`
	Runs         []Run     `json:"runs"`
}
