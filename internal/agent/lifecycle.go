package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func (a *Agent) run(ctx context.Context) error {
	a.startResend()
	a.health.SetServing(true)
	a.grpcHealth.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startResend runs the scaling resend loop outside the errgroup so that it
// keeps going until in-flight batches are processed during shutdown.
func (a *Agent) startResend() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopResend = cancel
	a.resendDone = make(chan error, 1)
	go func() {
		a.resendDone <- a.resender.Run(ctx)
	}()
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if a.store != nil {
				if err := a.store.Ping(ctx); err != nil {
					a.logger.Warn("scaling store unreachable", "error", err)
					a.health.SetStoreConnected(false)
				} else {
					a.health.SetStoreConnected(true)
				}
			}
			a.logHealth("ok")
		}
	}
}

func (a *Agent) logHealth(status string) {
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health",
		"status", status,
		"snapshot", a.health.Snapshot(),
		"pipeline", a.processor.Stats().Snapshot(),
	)
}

// shutdown stops components in dependency order: processing, the resend
// loop, metrics sinks and reporters, then the snapshot store. Every step runs
// to completion; ctx's deadline only turns the waits noisy.
func (a *Agent) shutdown(ctx context.Context) {
	a.health.SetServing(false)
	a.grpcHealth.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	a.processor.Close(ctx)
	if a.stopResend != nil {
		a.stopResend()
		<-a.resendDone
	}
	if err := a.registry.Shutdown(ctx); err != nil {
		a.logger.Warn("destination shutdown failed", "error", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("scaling store close failed", "error", err)
		}
		a.health.SetStoreConnected(false)
	}
}
