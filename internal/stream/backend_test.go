package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"logdrain-agent/internal/clock"
	"logdrain-agent/internal/config"
	"logdrain-agent/internal/model"
)

type capturedRequest struct {
	user, password string
	contentType    string
	body           string
}

type captureServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func newCaptureServer(t *testing.T, status int) *captureServer {
	t.Helper()
	s := &captureServer{status: status}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, password, _ := r.BasicAuth()
		s.mu.Lock()
		s.requests = append(s.requests, capturedRequest{
			user:        user,
			password:    password,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *captureServer) Requests() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

var measureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLibratoBackendSend(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK)
	backend := NewLibratoBackend(srv.Client(), srv.URL, "user@example.com", "secret")

	batch := []model.MetricRecord{
		{Name: "memory_total", Value: 196.79, Kind: model.MetricKindGauge, Tags: map[string]string{"source": "web.1"}, Time: measureTime},
		{Name: "router.status.2xx", Value: 1, Kind: model.MetricKindCounter, Tags: map[string]string{"dyno": "web.2"}, Time: measureTime},
		{Name: "router.service", Value: 18, Kind: model.MetricKindDistribution, Tags: map[string]string{"proc": "web"}, Time: measureTime},
	}
	if err := backend.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.user != "user@example.com" || req.password != "secret" {
		t.Errorf("basic auth = %q:%q", req.user, req.password)
	}
	if req.contentType != "application/json" {
		t.Errorf("content type = %q", req.contentType)
	}

	var got map[string][]map[string]any
	if err := json.Unmarshal([]byte(req.body), &got); err != nil {
		t.Fatalf("decode body %q: %v", req.body, err)
	}
	ts := float64(measureTime.Unix())
	want := map[string][]map[string]any{
		"gauges": {
			{"name": "memory_total", "value": 196.79, "source": "web.1", "measure_time": ts},
			{"name": "router.service", "value": 18.0, "source": "web", "measure_time": ts},
		},
		"counters": {
			{"name": "router.status.2xx", "value": 1.0, "source": "web.2", "measure_time": ts},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestLibratoEncodesEmptyListsAsArrays(t *testing.T) {
	payload, err := EncodeLibrato([]model.MetricRecord{{Name: "jobs", Value: 3, Kind: model.MetricKindCounter, Time: measureTime}}, time.Now())
	if err != nil {
		t.Fatalf("EncodeLibrato: %v", err)
	}
	want := fmt.Sprintf(`{"gauges":[],"counters":[{"name":"jobs","value":3,"source":"heroku","measure_time":%d}]}`, measureTime.Unix())
	if string(payload) != want {
		t.Fatalf("payload = %s, want %s", payload, want)
	}
}

func TestLibratoAlwaysSendsSourceAndMeasureTime(t *testing.T) {
	sentAt := measureTime.Add(time.Minute)
	payload, err := EncodeLibrato([]model.MetricRecord{{Name: "load_avg_1m", Value: 0.5, Kind: model.MetricKindGauge}}, sentAt)
	if err != nil {
		t.Fatalf("EncodeLibrato: %v", err)
	}
	var got map[string][]map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	want := map[string]any{"name": "load_avg_1m", "value": 0.5, "source": "heroku", "measure_time": float64(sentAt.Unix())}
	if len(got["gauges"]) != 1 {
		t.Fatalf("expected one gauge, got %s", payload)
	}
	if diff := cmp.Diff(want, got["gauges"][0]); diff != "" {
		t.Fatalf("gauge mismatch (-want +got):\n%s", diff)
	}
}

func TestLibratoBackendReportsStatus(t *testing.T) {
	srv := newCaptureServer(t, http.StatusUnauthorized)
	backend := NewLibratoBackend(srv.Client(), srv.URL, "u", "bad")
	err := backend.Send(context.Background(), []model.MetricRecord{{Name: "x", Value: 1}})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGraphiteBackendHTTP(t *testing.T) {
	srv := newCaptureServer(t, http.StatusAccepted)
	backend := NewGraphiteBackend(srv.Client(), srv.URL, "", "api-token")

	batch := []model.MetricRecord{
		{Name: "test", Value: 1.23, Time: measureTime},
		{Name: "another", Value: 3.21, Time: measureTime},
		{Name: "untimed", Value: 7},
	}
	if err := backend.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].user != "api-token" {
		t.Errorf("basic auth user = %q", reqs[0].user)
	}
	ts := "1709294400"
	want := "api-token.test 1.23 " + ts + "\n" +
		"api-token.another 3.21 " + ts + "\n" +
		"api-token.untimed 7\n"
	if reqs[0].body != want {
		t.Fatalf("body = %q, want %q", reqs[0].body, want)
	}
}

func TestGraphiteBackendUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	backend := NewGraphiteBackend(nil, "", conn.LocalAddr().String(), "key")
	var batch []model.MetricRecord
	for i := 0; i < 100; i++ {
		batch = append(batch, model.MetricRecord{Name: "router.status.2xx", Value: 1, Time: measureTime})
	}
	if err := backend.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	lines := 0
	buf := make([]byte, 64<<10)
	for lines < len(batch) {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read datagram after %d lines: %v", lines, err)
		}
		if n > maxDatagramBytes {
			t.Fatalf("datagram of %d bytes exceeds %d", n, maxDatagramBytes)
		}
		for _, line := range strings.Split(strings.TrimSuffix(string(buf[:n]), "\n"), "\n") {
			if line != "key.router.status.2xx 1 1709294400" {
				t.Fatalf("unexpected line %q", line)
			}
			lines++
		}
	}
}

func TestBatchClientOverHTTP(t *testing.T) {
	srv := newCaptureServer(t, http.StatusOK)
	clk := clock.Fake(measureTime)
	c := NewBatchClient(NewGraphiteBackend(srv.Client(), srv.URL, "", "k"),
		BatchOptions{Threshold: GraphiteFlushThreshold, Clock: clk}, slog.New(slog.DiscardHandler))

	for i := 0; i <= GraphiteFlushThreshold; i++ {
		c.Enqueue(model.MetricRecord{Name: "n", Value: float64(i), Time: measureTime})
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if n := strings.Count(reqs[0].body, "\n"); n != GraphiteFlushThreshold+1 {
		t.Fatalf("expected %d lines, got %d", GraphiteFlushThreshold+1, n)
	}
}

func TestNewSinksFromConfig(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	clk := clock.Fake(measureTime)

	cases := []struct {
		dest config.Destination
		want []string
	}{
		{config.Destination{Token: "t"}, nil},
		{config.Destination{Token: "t", LibratoUser: "u", LibratoToken: "p"}, []string{"librato"}},
		{config.Destination{Token: "t", GraphiteAPIKey: "g"}, []string{"graphite"}},
		{config.Destination{Token: "t", LibratoUser: "u", LibratoToken: "p", GraphiteAPIKey: "g"}, []string{"librato", "graphite"}},
	}
	for _, tc := range cases {
		var got []string
		for _, s := range NewSinksFromConfig(config.Config{}, tc.dest, clk, logger) {
			got = append(got, s.backend.Name())
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("sinks for %+v mismatch (-want +got):\n%s", tc.dest, diff)
		}
	}
}
