package store

import (
	"fmt"
	"time"

	"github.com/formsmith/formsmith/internal/model"
)

// ExportAllRuns builds an export of the run ledger, newest runs first, with
// summary counters over the exported records. A limit of 0 exports every run.
func (s *Store) ExportAllRuns(limit int) (model.RunLedgerExport, error) {
	runs, err := s.ListRuns(RunFilter{Limit: limit})
	if err != nil {
		return model.RunLedgerExport{}, fmt.Errorf("list runs: %w", err)
	}

	export := model.RunLedgerExport{
		ExportedAt: time.Now().UTC(),
		RunCount:   len(runs),
		Runs:       runs,
	}
	var latencySum int64
	for _, r := range runs {
		switch r.Status {
		case model.RunSucceeded:
			export.Succeeded++
			latencySum += r.LatencyMs
		case model.RunFailed:
			export.Failed++
		}
	}
	if export.Succeeded > 0 {
		export.AvgLatencyMs = latencySum / int64(export.Succeeded)
	}
	return export, nil
}
