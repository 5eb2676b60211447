package destination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"logdrain-agent/internal/alert"
	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/config"
	"logdrain-agent/internal/scaling"
	"logdrain-agent/internal/stream"
)

// Registry resolves drain tokens. It is built once at startup and read-only
// afterwards.
type Registry struct {
	byToken map[string]*Destination
	ordered []*Destination
}

func NewRegistry(dests ...*Destination) *Registry {
	r := &Registry{byToken: make(map[string]*Destination, len(dests))}
	for _, d := range dests {
		r.byToken[d.Token()] = d
		r.ordered = append(r.ordered, d)
	}
	return r
}

func (r *Registry) Lookup(token string) (*Destination, bool) {
	d, ok := r.byToken[token]
	return d, ok
}

func (r *Registry) All() []*Destination {
	return r.ordered
}

func (r *Registry) Len() int { return len(r.ordered) }

// Targets lists the destinations as inputs of the scaling resend loop.
func (r *Registry) Targets() []scaling.Target {
	out := make([]scaling.Target, 0, len(r.ordered))
	for _, d := range r.ordered {
		out = append(out, d)
	}
	return out
}

// Shutdown drains every metrics sink first, then flushes the reporters.
func (r *Registry) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(r.ordered))
	for i, d := range r.ordered {
		g.Go(func() error {
			if err := d.ShutdownSinks(ctx); err != nil {
				errs[i] = fmt.Errorf("destination %s: %w", d.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range r.ordered {
		d.FlushReporter()
	}
	return errors.Join(errs...)
}

// Build creates one destination per configured token. store may be nil.
func Build(ctx context.Context, cfg config.Config, clk clock.Clock, store scaling.Store, logger *slog.Logger) (*Registry, error) {
	dests := make([]*Destination, 0, len(cfg.Destinations))
	for _, dc := range cfg.Destinations {
		reporter, err := alert.NewSentryReporter(alert.SentryOptions{
			DSN:         dc.SentryDSN,
			Environment: dc.Environment,
			Release:     cfg.Release,
			Debug:       cfg.SentryDebug,
		}, logger.With("destination", dc.ShortToken()))
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", dc.ShortToken(), err)
		}

		batchClients := stream.NewSinksFromConfig(cfg, dc, clk, logger)
		sinks := make([]stream.Sink, 0, len(batchClients))
		for _, c := range batchClients {
			sinks = append(sinks, c)
		}

		cache := scaling.NewCache(scaling.KeyForToken(dc.Token), store)
		if err := cache.Restore(ctx); err != nil {
			logger.Warn("could not restore scaling snapshot", "destination", dc.ShortToken(), "error", err)
		}

		d := New(dc.Token, dc.ShortToken(), reporter, sinks, cache, logger)
		logger.Info("loaded destination",
			"destination", d.Name(),
			"environment", dc.Environment,
			"librato", dc.HasLibrato(),
			"graphite", dc.HasGraphite(),
		)
		dests = append(dests, d)
	}
	return NewRegistry(dests...), nil
}
