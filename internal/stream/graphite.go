package stream

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"

	"logdrain-agent/internal/model"
)

const (
	DefaultGraphiteEndpoint = "https://www.hostedgraphite.com/api/v1/sink"
	GraphiteFlushThreshold  = 100
	maxDatagramBytes        = 1400
)

// GraphiteBackend sends plaintext lines keyed "<apikey>.<name>", either as
// an authenticated HTTP POST or as UDP datagrams when udpAddr is set.
type GraphiteBackend struct {
	client   *http.Client
	endpoint string
	udpAddr  string
	apiKey   string
}

func NewGraphiteBackend(client *http.Client, endpoint, udpAddr, apiKey string) *GraphiteBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultGraphiteEndpoint
	}
	return &GraphiteBackend{client: client, endpoint: endpoint, udpAddr: udpAddr, apiKey: apiKey}
}

func (b *GraphiteBackend) Name() string { return "graphite" }

func (b *GraphiteBackend) Send(ctx context.Context, batch []model.MetricRecord) error {
	if b.udpAddr != "" {
		return b.sendUDP(ctx, batch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(EncodeGraphite(b.apiKey, batch)))
	if err != nil {
		return fmt.Errorf("build graphite request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.SetBasicAuth(b.apiKey, "")
	return doRequest(b.client, req)
}

// sendUDP packs whole lines into datagrams of at most maxDatagramBytes.
func (b *GraphiteBackend) sendUDP(ctx context.Context, batch []model.MetricRecord) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", b.udpAddr)
	if err != nil {
		return fmt.Errorf("dial graphite %s: %w", b.udpAddr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	var buf []byte
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := conn.Write(buf)
		buf = buf[:0]
		return err
	}
	for _, r := range batch {
		line := append(EncodeGraphiteLine(b.apiKey, r), '\n')
		if len(buf)+len(line) > maxDatagramBytes {
			if err := flush(); err != nil {
				return fmt.Errorf("write graphite datagram: %w", err)
			}
		}
		buf = append(buf, line...)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("write graphite datagram: %w", err)
	}
	return nil
}
