// Package destination ties a drain token to its error-tracking reporter,
// metrics sinks and scaling snapshot.
package destination

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"logdrain-agent/internal/alert"
	"logdrain-agent/internal/model"
	"logdrain-agent/internal/scaling"
	"logdrain-agent/internal/stream"
)

const reporterFlushTimeout = 5 * time.Second

// Destination owns all per-tenant state. Nothing is shared between
// destinations.
type Destination struct {
	token    string
	name     string
	logger   *slog.Logger
	reporter alert.Reporter
	sinks    []stream.Sink
	scaling  *scaling.Cache
}

func New(token, name string, reporter alert.Reporter, sinks []stream.Sink, cache *scaling.Cache, logger *slog.Logger) *Destination {
	if cache == nil {
		cache = scaling.NewCache(scaling.KeyForToken(token), nil)
	}
	return &Destination{
		token:    token,
		name:     name,
		logger:   logger.With("destination", name),
		reporter: reporter,
		sinks:    sinks,
		scaling:  cache,
	}
}

func (d *Destination) Token() string { return d.token }

// Name is a loggable form of the token.
func (d *Destination) Name() string { return d.name }

func (d *Destination) Logger() *slog.Logger { return d.logger }

func (d *Destination) Report(a model.Alert) {
	d.reporter.Report(a)
}

// Enqueue hands the record to every metrics sink of the destination.
func (d *Destination) Enqueue(r model.MetricRecord) {
	for _, s := range d.sinks {
		s.Enqueue(r)
	}
}

func (d *Destination) HasSinks() bool { return len(d.sinks) > 0 }

func (d *Destination) ReplaceScaling(ctx context.Context, events []model.ScalingEvent) error {
	return d.scaling.Replace(ctx, events)
}

func (d *Destination) ScalingSnapshot() []model.ScalingEvent {
	return d.scaling.Snapshot()
}

// ShutdownSinks flushes and drains every sink concurrently.
func (d *Destination) ShutdownSinks(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(d.sinks))
	for i, s := range d.sinks {
		g.Go(func() error {
			errs[i] = s.Shutdown(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// FlushReporter waits for queued alerts. It keeps flushing until the
// reporter's queue is empty, logging each round that times out.
func (d *Destination) FlushReporter() {
	for !d.reporter.Flush(reporterFlushTimeout) {
		d.logger.Warn("alerts still queued after reporter flush, retrying", "timeout", reporterFlushTimeout)
	}
}
