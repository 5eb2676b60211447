// Package pipeline runs drained log batches through parsing, alerting and
// metric translation for their destination.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"logdrain-agent/internal/alert"
	"logdrain-agent/internal/destination"
	"logdrain-agent/internal/logparse"
	"logdrain-agent/internal/model"
	"logdrain-agent/internal/translator"
)

// scalingSource is the platform API process that announces formation changes.
const scalingSource = "api"

const closeWarnInterval = 5 * time.Second

var ErrClosed = errors.New("processor closed")

// Processor executes batches on a bounded worker pool, one batch per task.
// Lines of a batch are handled in order. Batches submitted while every
// worker is busy wait for a free worker without holding up the submitter.
type Processor struct {
	logger     *slog.Logger
	translator *translator.Translator
	stats      *Stats

	mu     sync.RWMutex
	closed bool
	pool   errgroup.Group

	// pending covers queued and running batches. The pool alone cannot,
	// because queued batches join it after Close may have started waiting.
	pending  sync.WaitGroup
	inflight atomic.Int64
	queued   atomic.Int64
}

func New(logger *slog.Logger, concurrency int) *Processor {
	p := &Processor{
		logger:     logger,
		translator: translator.New(logger),
		stats:      &Stats{},
	}
	if concurrency > 0 {
		p.pool.SetLimit(concurrency)
	}
	return p
}

func (p *Processor) Stats() *Stats { return p.stats }

// InFlight returns the number of submitted batches not yet finished.
func (p *Processor) InFlight() int64 { return p.inflight.Load() }

// Queued returns the number of submitted batches waiting for a worker.
func (p *Processor) Queued() int64 { return p.queued.Load() }

// Submit schedules body for processing and returns without waiting for it.
func (p *Processor) Submit(body string, dest *destination.Destination) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.inflight.Add(1)
	p.pending.Add(1)
	task := func() error {
		defer p.pending.Done()
		defer p.inflight.Add(-1)
		p.Process(context.Background(), body, dest)
		return nil
	}
	if p.pool.TryGo(task) {
		return nil
	}

	p.queued.Add(1)
	go func() {
		p.pool.Go(func() error {
			p.queued.Add(-1)
			return task()
		})
	}()
	return nil
}

// Close stops accepting batches and waits for the submitted ones to finish.
// The wait is never abandoned; once ctx is done the remaining batch count is
// logged periodically.
func (p *Processor) Close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	t := time.NewTicker(closeWarnInterval)
	defer t.Stop()
	for {
		p.logger.Warn("still waiting for in-flight batches", "inflight", p.inflight.Load())
		select {
		case <-done:
			return
		case <-t.C:
		}
	}
}

// Process handles every line of body synchronously. Malformed lines are
// logged and skipped.
func (p *Processor) Process(ctx context.Context, body string, dest *destination.Destination) {
	p.stats.batches.Add(1)
	logger := dest.Logger()
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		frame, err := logparse.ParseFrame(line)
		if err != nil {
			p.stats.linesSkipped.Add(1)
			logger.Warn("skipping unparseable log line", "error", err, "line", line)
			continue
		}
		p.stats.linesParsed.Add(1)
		p.handleFrame(ctx, frame, dest)
	}
}

func (p *Processor) handleFrame(ctx context.Context, frame logparse.Frame, dest *destination.Destination) {
	if frame.Kind == logparse.KindApplication && frame.Source == scalingSource {
		if p.handleScaling(ctx, frame, dest) {
			return
		}
	}

	if a, ok := alert.DynoError(frame); ok {
		p.report(dest, a)
		return
	}

	pairs, _, err := logparse.ParseKeyValuePairs(frame.Text)
	if err != nil {
		return
	}
	if alert.IsRouterLine(frame) {
		if a, ok := alert.RouterTimeout(frame, pairs); ok {
			p.report(dest, a)
		}
		p.enqueue(dest, p.translator.RouterMetrics(pairs, frame.Timestamp))
	}
	p.enqueue(dest, p.translator.Metrics(pairs, frame.Timestamp))
}

func (p *Processor) handleScaling(ctx context.Context, frame logparse.Frame, dest *destination.Destination) bool {
	events, user, err := logparse.ParseScalingEvent(frame.Text)
	if err != nil {
		return false
	}
	if err := dest.ReplaceScaling(ctx, events); err != nil {
		dest.Logger().Warn("could not persist scaling snapshot", "error", err)
	}
	dest.Logger().Debug("scaling snapshot replaced", "processes", len(events), "user", user)
	p.enqueue(dest, translator.ScalingMetrics(events, frame.Timestamp))
	return true
}

func (p *Processor) report(dest *destination.Destination, a model.Alert) {
	p.stats.alertsReported.Add(1)
	dest.Report(a)
}

func (p *Processor) enqueue(dest *destination.Destination, records []model.MetricRecord) {
	if len(records) == 0 || !dest.HasSinks() {
		return
	}
	for _, r := range records {
		dest.Enqueue(r)
	}
	p.stats.metricsQueued.Add(int64(len(records)))
}
