// Package server is the HTTPS drain endpoint the log router posts batches to.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"logdrain-agent/internal/destination"
)

const (
	DrainTokenHeader = "Logplex-Drain-Token"

	missingTokenMessage = `Header of type "logplex-drain-token" was missing`
	readHeaderTimeout   = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Submitter accepts a batch for asynchronous processing.
type Submitter interface {
	Submit(body string, dest *destination.Destination) error
}

type Options struct {
	Addr         string
	MaxBodyBytes int64
	// OnAccept is called for every batch handed to the submitter.
	OnAccept func()
}

type Server struct {
	logger    *slog.Logger
	registry  *destination.Registry
	submitter Submitter
	opts      Options
}

func New(registry *destination.Registry, submitter Submitter, opts Options, logger *slog.Logger) *Server {
	if opts.OnAccept == nil {
		opts.OnAccept = func() {}
	}
	return &Server{
		logger:    logger,
		registry:  registry,
		submitter: submitter,
		opts:      opts,
	}
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/ht", s.handleHealth)
	router.POST("/", s.handleLogs)
	return router
}

// Run serves until ctx is cancelled, then stops accepting connections and
// waits for running handlers.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen drain endpoint %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.logger.Info("drain endpoint listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve drain endpoint: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown drain endpoint: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token := r.Header.Get(DrainTokenHeader)
	if token == "" {
		http.Error(w, missingTokenMessage, http.StatusBadRequest)
		return
	}
	dest, ok := s.registry.Lookup(token)
	if !ok {
		s.logger.Debug("unknown drain token", "token_prefix", prefix(token))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		dest.Logger().Warn("could not read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !utf8.Valid(body) {
		dest.Logger().Warn("dropping request body with invalid UTF-8", "bytes", len(body))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.submitter.Submit(string(body), dest); err != nil {
		dest.Logger().Warn("could not schedule batch", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.opts.OnAccept()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var body io.Reader = r.Body
	if s.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}

	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("open zstd body: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}

	if s.opts.MaxBodyBytes > 0 {
		// Bound the decompressed size as well.
		data, err := io.ReadAll(io.LimitReader(body, s.opts.MaxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > s.opts.MaxBodyBytes {
			return nil, fmt.Errorf("body exceeds %d bytes", s.opts.MaxBodyBytes)
		}
		return data, nil
	}
	return io.ReadAll(body)
}

func prefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
