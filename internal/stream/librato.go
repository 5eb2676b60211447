package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"logdrain-agent/internal/model"
)

const (
	DefaultLibratoEndpoint = "https://metrics-api.librato.com/v1/metrics"
	LibratoFlushThreshold  = 300
	maxErrorBodyBytes      = 4 << 10
)

// LibratoBackend posts batches to the legacy Librato metrics API.
type LibratoBackend struct {
	client   *http.Client
	endpoint string
	user     string
	token    string
}

func NewLibratoBackend(client *http.Client, endpoint, user, token string) *LibratoBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultLibratoEndpoint
	}
	return &LibratoBackend{client: client, endpoint: endpoint, user: user, token: token}
}

func (b *LibratoBackend) Name() string { return "librato" }

func (b *LibratoBackend) Send(ctx context.Context, batch []model.MetricRecord) error {
	payload, err := EncodeLibrato(batch, time.Now())
	if err != nil {
		return fmt.Errorf("encode librato payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build librato request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(b.user, b.token)
	return doRequest(b.client, req)
}

func doRequest(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: status %d: %s", req.URL.Redacted(), resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
