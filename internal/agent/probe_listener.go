package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "logdrain-agent"

func (a *Agent) runProbeListener(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ProbeListenAddr)
	if addr == "" {
		return fmt.Errorf("empty probe listen address")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	a.logger.Info("probe endpoint listening", "addr", addr)
	return a.serveProbe(ctx, ln)
}

// serveProbe answers grpc.health.v1 checks until ctx is cancelled.
func (a *Agent) serveProbe(ctx context.Context, ln net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, a.grpcHealth)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("serve probe endpoint %s: %w", ln.Addr(), err)
	}
	return nil
}
