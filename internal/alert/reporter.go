package alert

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"logdrain-agent/internal/model"
)

// Reporter delivers alerts to an error-tracking backend.
type Reporter interface {
	Report(a model.Alert)
	Flush(timeout time.Duration) bool
}

type SentryOptions struct {
	DSN         string
	Environment string
	Release     string
	Debug       bool

	// Transport replaces the HTTP transport, mostly for tests.
	Transport sentry.Transport
}

// SentryReporter sends every alert through its own hub and scope so tags
// and fingerprints of concurrent alerts never mix.
type SentryReporter struct {
	client *sentry.Client
	logger *slog.Logger
}

func NewSentryReporter(opts SentryOptions, logger *slog.Logger) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		Debug:       opts.Debug,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create sentry client: %w", err)
	}
	return &SentryReporter{client: client, logger: logger}, nil
}

func (r *SentryReporter) Report(a model.Alert) {
	scope := sentry.NewScope()
	scope.SetLevel(sentry.LevelError)
	scope.SetTags(a.Tags)
	scope.SetFingerprint(a.Fingerprint)

	hub := sentry.NewHub(r.client, scope)
	if id := hub.CaptureMessage(a.Message); id == nil {
		r.logger.Warn("sentry dropped alert", "fingerprint", a.Fingerprint)
		return
	}
	r.logger.Debug("alert reported", "fingerprint", a.Fingerprint)
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.client.Flush(timeout)
}
