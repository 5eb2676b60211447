package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/model"
)

const (
	DefaultFlushInterval = 60 * time.Second
	defaultSendTimeout   = 30 * time.Second
	waitWarnInterval     = 5 * time.Second
)

// Sink accepts metric records for one destination and delivers them to a
// metrics backend.
type Sink interface {
	Enqueue(r model.MetricRecord)
	Shutdown(ctx context.Context) error
}

// Backend serializes and sends one batch.
type Backend interface {
	Name() string
	Send(ctx context.Context, batch []model.MetricRecord) error
}

type BatchOptions struct {
	// Threshold is the queue length that, once exceeded, triggers a flush.
	Threshold   int
	Interval    time.Duration
	SendTimeout time.Duration
	Clock       clock.Clock
}

// BatchClient queues records and hands them to its backend in the
// background, either when the queue outgrows the threshold or when the
// flush interval has passed since the last flush. Failed batches are
// logged and dropped.
type BatchClient struct {
	mu sync.Mutex

	logger      *slog.Logger
	backend     Backend
	clock       clock.Clock
	threshold   int
	interval    time.Duration
	sendTimeout time.Duration

	pending   []model.MetricRecord
	lastFlush time.Time
	closed    bool

	outstanding taskGroup
}

func NewBatchClient(backend Backend, opts BatchOptions, logger *slog.Logger) *BatchClient {
	if opts.Interval <= 0 {
		opts.Interval = DefaultFlushInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &BatchClient{
		logger:      logger.With("backend", backend.Name()),
		backend:     backend,
		clock:       opts.Clock,
		threshold:   opts.Threshold,
		interval:    opts.Interval,
		sendTimeout: opts.SendTimeout,
		pending:     make([]model.MetricRecord, 0, opts.Threshold+1),
		lastFlush:   opts.Clock.Now(),
	}
}

func (c *BatchClient) Enqueue(r model.MetricRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Debug("client shut down, dropping metric", "name", r.Name)
		return
	}
	c.pending = append(c.pending, r)

	now := c.clock.Now()
	if len(c.pending) <= c.threshold && now.Sub(c.lastFlush) <= c.interval {
		return
	}
	batch := c.pending
	c.pending = make([]model.MetricRecord, 0, c.threshold+1)
	c.lastFlush = now

	c.logger.Debug("triggering background flush", "records", len(batch))
	c.outstanding.Go(func() {
		_ = c.deliver(batch)
	})
}

// Shutdown sends whatever is still queued, then waits for background
// deliveries to finish. Records enqueued afterwards are dropped. The wait is
// never abandoned; once ctx is done a warning is logged periodically until
// the last delivery returns.
func (c *BatchClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	var flushErr error
	if len(batch) > 0 {
		flushErr = c.deliver(batch)
	}
	c.outstanding.Wait(ctx, c.clock, c.logger)
	return flushErr
}

// Pending returns the number of queued records not yet handed to a delivery.
func (c *BatchClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Outstanding returns the number of background deliveries in flight.
func (c *BatchClient) Outstanding() int64 {
	return c.outstanding.count.Load()
}

func (c *BatchClient) deliver(batch []model.MetricRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
	defer cancel()

	if err := c.backend.Send(ctx, batch); err != nil {
		c.logger.Error("metrics delivery failed, dropping batch", "records", len(batch), "error", err)
		return fmt.Errorf("send %d records to %s: %w", len(batch), c.backend.Name(), err)
	}
	c.logger.Debug("metrics delivered", "records", len(batch))
	return nil
}

// taskGroup tracks background deliveries. Tasks must not be added once
// Wait has been called.
type taskGroup struct {
	group errgroup.Group
	count atomic.Int64
}

func (g *taskGroup) Go(fn func()) {
	g.count.Add(1)
	g.group.Go(func() error {
		defer g.count.Add(-1)
		fn()
		return nil
	})
}

// Wait blocks until every task has returned. ctx only decides when to start
// warning about the wait.
func (g *taskGroup) Wait(ctx context.Context, clk clock.Clock, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		_ = g.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	t := clk.NewTicker(waitWarnInterval)
	defer t.Stop()
	for {
		logger.Warn("still waiting for outstanding deliveries", "outstanding", g.count.Load())
		select {
		case <-done:
			return
		case <-t.C:
		}
	}
}
