package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"logdrain-agent/internal/agent/version"
	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/config"
	"logdrain-agent/internal/destination"
	"logdrain-agent/internal/pipeline"
	"logdrain-agent/internal/scaling"
	"logdrain-agent/internal/server"
)

const redisConnectTimeout = 5 * time.Second

type Agent struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *destination.Registry
	processor  *pipeline.Processor
	server     *server.Server
	resender   *scaling.Resender
	store      *scaling.RedisStore
	health     *HealthStatus
	grpcHealth *health.Server

	stopResend func()
	resendDone chan error
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	var (
		store      scaling.Store
		redisStore *scaling.RedisStore
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		s, err := scaling.NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("scaling store: %w", err)
		}
		redisStore, store = s, s
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	registry, err := destination.Build(ctx, cfg, clock.Real(), store, logger)
	if err != nil {
		return nil, fmt.Errorf("destinations: %w", err)
	}

	h := NewHealthStatus()
	processor := pipeline.New(logger, cfg.WorkerConcurrency)
	srv := server.New(registry, processor, server.Options{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		MaxBodyBytes: cfg.MaxBodyBytes,
		OnAccept:     func() { h.MarkRequest(time.Now()) },
	}, logger)

	return &Agent{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		processor:  processor,
		server:     srv,
		resender:   scaling.NewResender(logger, clock.Real(), cfg.ResendInterval, registry.Targets()),
		store:      redisStore,
		health:     h,
		grpcHealth: health.NewServer(),
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	info := version.Get(a.cfg, a.registry.Len())
	a.logger.Info("starting logdrain-agent", "release", info.Release, "port", a.cfg.Port, "destinations", info.Destinations)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// listeners stopped in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("logdrain-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
