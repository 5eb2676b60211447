package stream

import (
	"log/slog"
	"net/http"
	"time"

	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/config"
)

const defaultHTTPTimeout = 30 * time.Second

// NewSinksFromConfig builds one batching client per metrics backend the
// destination has credentials for.
func NewSinksFromConfig(cfg config.Config, dest config.Destination, clk clock.Clock, logger *slog.Logger) []*BatchClient {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	logger = logger.With("destination", dest.ShortToken())

	var sinks []*BatchClient
	if dest.HasLibrato() {
		backend := NewLibratoBackend(httpClient, cfg.LibratoEndpoint, dest.LibratoUser, dest.LibratoToken)
		sinks = append(sinks, NewBatchClient(backend, BatchOptions{
			Threshold: LibratoFlushThreshold,
			Clock:     clk,
		}, logger))
	}
	if dest.HasGraphite() {
		backend := NewGraphiteBackend(httpClient, cfg.GraphiteEndpoint, dest.GraphiteUDPAddr, dest.GraphiteAPIKey)
		sinks = append(sinks, NewBatchClient(backend, BatchOptions{
			Threshold: GraphiteFlushThreshold,
			Clock:     clk,
		}, logger))
	}
	return sinks
}
