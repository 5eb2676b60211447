package scaling

import (
	"context"
	"log/slog"
	"time"

	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/model"
	"logdrain-agent/internal/translator"
)

const DefaultResendInterval = 10 * time.Second

// Target is a destination whose snapshot gets re-emitted.
type Target interface {
	Name() string
	ScalingSnapshot() []model.ScalingEvent
	Enqueue(r model.MetricRecord)
}

// Resender re-enqueues the scaling gauges of every target with a known
// snapshot on each tick.
type Resender struct {
	logger   *slog.Logger
	clock    clock.Clock
	interval time.Duration
	targets  []Target
}

func NewResender(logger *slog.Logger, clk clock.Clock, interval time.Duration, targets []Target) *Resender {
	if interval <= 0 {
		interval = DefaultResendInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Resender{
		logger:   logger,
		clock:    clk,
		interval: interval,
		targets:  targets,
	}
}

// Run blocks until ctx is cancelled.
func (r *Resender) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.resend(now)
		}
	}
}

func (r *Resender) resend(now time.Time) {
	for _, t := range r.targets {
		events := t.ScalingSnapshot()
		if len(events) == 0 {
			continue
		}
		metrics := translator.ScalingMetrics(events, now)
		for _, m := range metrics {
			t.Enqueue(m)
		}
		r.logger.Debug("resent scaling snapshot", "destination", t.Name(), "metrics", len(metrics))
	}
}
