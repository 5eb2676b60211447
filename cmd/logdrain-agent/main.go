package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/pflag"

	"logdrain-agent/internal/agent"
	"logdrain-agent/internal/config"
)

func main() {
	flags := pflag.NewFlagSet("logdrain-agent", pflag.ExitOnError)
	port := flags.Int("port", 0, "HTTP port for the drain endpoint (overrides PORT)")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	destinationsFile := flags.String("destinations-file", "", "YAML file with additional destinations (overrides DESTINATIONS_FILE)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(config.Overrides{
		Port:             *port,
		LogLevel:         *logLevel,
		DestinationsFile: *destinationsFile,
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := agent.BuildLogger(cfg)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: cfg.Release,
			Debug:   cfg.SentryDebug,
		}); err != nil {
			logger.Warn("self error tracking disabled", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("agent initialization failed", "error", err)
		sentry.CaptureException(err)
		return
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("agent runtime failed", "error", err)
		sentry.CaptureException(err)
	}
}
