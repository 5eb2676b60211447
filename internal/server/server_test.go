package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"logdrain-agent/internal/destination"
	"logdrain-agent/internal/model"
)

type nopReporter struct{}

func (nopReporter) Report(model.Alert) {}

func (nopReporter) Flush(time.Duration) bool { return true }

type recordingSubmitter struct {
	mu     sync.Mutex
	bodies []string
	dests  []string
	err    error
}

func (s *recordingSubmitter) Submit(body string, dest *destination.Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.bodies = append(s.bodies, body)
	s.dests = append(s.dests, dest.Token())
	return nil
}

func (s *recordingSubmitter) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

var discard = slog.New(slog.DiscardHandler)

const line = "83 <40>1 2024-03-01T12:00:00+00:00 host app web.1 - sample#load=1"

func newTestServer(t *testing.T, sub *recordingSubmitter, maxBody int64) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	reg := destination.NewRegistry(destination.New("tok", "tok", nopReporter{}, nil, nil, discard))
	accepted := new(atomic.Int64)
	s := New(reg, sub, Options{MaxBodyBytes: maxBody, OnAccept: func() { accepted.Add(1) }}, discard)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, accepted
}

func post(t *testing.T, url string, headers map[string]string, body []byte) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, &recordingSubmitter{}, 0)
	resp, err := http.Get(srv.URL + "/ht")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGetRootNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &recordingSubmitter{}, 0)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestPostAcceptsBatch(t *testing.T) {
	sub := &recordingSubmitter{}
	srv, accepted := newTestServer(t, sub, 0)

	status, body := post(t, srv.URL, map[string]string{DrainTokenHeader: "tok"}, []byte(line))
	if status != http.StatusOK || body != "" {
		t.Fatalf("response = %d %q, want 200 with empty body", status, body)
	}
	sub.mu.Lock()
	bodies, dests := sub.bodies, sub.dests
	sub.mu.Unlock()
	if len(bodies) != 1 || bodies[0] != line || dests[0] != "tok" {
		t.Fatalf("unexpected submissions %v %v", bodies, dests)
	}
	if n := accepted.Load(); n != 1 {
		t.Fatalf("OnAccept called %d times", n)
	}
}

func TestPostUnparseableBodyStillOK(t *testing.T) {
	srv, _ := newTestServer(t, &recordingSubmitter{}, 0)
	status, body := post(t, srv.URL, map[string]string{DrainTokenHeader: "tok"}, []byte("some text"))
	if status != http.StatusOK || body != "" {
		t.Fatalf("response = %d %q, want 200 with empty body", status, body)
	}
}

func TestPostMissingToken(t *testing.T) {
	sub := &recordingSubmitter{}
	srv, _ := newTestServer(t, sub, 0)
	status, body := post(t, srv.URL, nil, []byte(line))
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if strings.TrimSpace(body) != `Header of type "logplex-drain-token" was missing` {
		t.Fatalf("body = %q", body)
	}
	if len(sub.Bodies()) != 0 {
		t.Fatalf("batch submitted without a token")
	}
}

func TestPostUnknownToken(t *testing.T) {
	sub := &recordingSubmitter{}
	srv, _ := newTestServer(t, sub, 0)
	status, _ := post(t, srv.URL, map[string]string{DrainTokenHeader: "other"}, []byte(line))
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if len(sub.Bodies()) != 0 {
		t.Fatalf("batch submitted for an unknown token")
	}
}

func TestPostCompressedBodies(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write([]byte(line)); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zs := enc.EncodeAll([]byte(line), nil)
	_ = enc.Close()

	for encoding, payload := range map[string][]byte{"gzip": gz.Bytes(), "zstd": zs} {
		sub := &recordingSubmitter{}
		srv, _ := newTestServer(t, sub, 0)
		status, _ := post(t, srv.URL, map[string]string{DrainTokenHeader: "tok", "Content-Encoding": encoding}, payload)
		if status != http.StatusOK {
			t.Errorf("%s: status = %d", encoding, status)
			continue
		}
		if bodies := sub.Bodies(); len(bodies) != 1 || bodies[0] != line {
			t.Errorf("%s: decoded bodies = %q", encoding, bodies)
		}
	}
}

func TestPostRejectsUnreadableBodies(t *testing.T) {
	cases := map[string]struct {
		headers map[string]string
		body    []byte
		maxBody int64
	}{
		"bad gzip":         {map[string]string{"Content-Encoding": "gzip"}, []byte("not gzip"), 0},
		"unknown encoding": {map[string]string{"Content-Encoding": "br"}, []byte(line), 0},
		"too large":        {nil, bytes.Repeat([]byte("x"), 2048), 1024},
	}
	for name, tc := range cases {
		sub := &recordingSubmitter{}
		srv, _ := newTestServer(t, sub, tc.maxBody)
		headers := map[string]string{DrainTokenHeader: "tok"}
		for k, v := range tc.headers {
			headers[k] = v
		}
		status, _ := post(t, srv.URL, headers, tc.body)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, status)
		}
		if len(sub.Bodies()) != 0 {
			t.Errorf("%s: body submitted", name)
		}
	}
}

func TestPostInvalidUTF8IsDropped(t *testing.T) {
	sub := &recordingSubmitter{}
	srv, accepted := newTestServer(t, sub, 0)
	status, _ := post(t, srv.URL, map[string]string{DrainTokenHeader: "tok"}, []byte{0xff, 0xfe, 'a'})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(sub.Bodies()) != 0 || accepted.Load() != 0 {
		t.Fatalf("invalid UTF-8 body was submitted")
	}
}

func TestPostWhileClosing(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New("processor closed")}
	srv, _ := newTestServer(t, sub, 0)
	status, _ := post(t, srv.URL, map[string]string{DrainTokenHeader: "tok"}, []byte(line))
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	reg := destination.NewRegistry()
	s := New(reg, &recordingSubmitter{}, Options{}, discard)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ht")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
