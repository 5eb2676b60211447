package pipeline

import "sync/atomic"

type Stats struct {
	batches        atomic.Int64
	linesParsed    atomic.Int64
	linesSkipped   atomic.Int64
	alertsReported atomic.Int64
	metricsQueued  atomic.Int64
}

func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"batches_processed": s.batches.Load(),
		"lines_parsed":      s.linesParsed.Load(),
		"lines_skipped":     s.linesSkipped.Load(),
		"alerts_reported":   s.alertsReported.Load(),
		"metrics_enqueued":  s.metricsQueued.Load(),
	}
}
