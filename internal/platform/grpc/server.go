// Package grpc hosts the internal gRPC health endpoint and its client check.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves grpc.health.v1 for a set of named services.
type HealthServer struct {
	server   *gogrpc.Server
	health   *health.Server
	services []string
	logger   *zap.Logger
}

// NewHealthServer builds a health server reporting NOT_SERVING for the overall
// status and every named service until SetServing is called.
func NewHealthServer(logger *zap.Logger, services ...string) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	h := &HealthServer{
		server:   server,
		health:   healthServer,
		services: append([]string{""}, services...),
		logger:   logger,
	}
	h.SetServing(false)
	return h
}

// SetServing flips every registered service between SERVING and NOT_SERVING.
func (h *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, name := range h.services {
		h.health.SetServingStatus(name, status)
	}
}

// Serve accepts connections on listener until ctx is canceled.
func (h *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("listener is required")
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- h.server.Serve(listener)
	}()
	h.logger.Info("grpc health listening", zap.String("addr", listener.Addr().String()))

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.server.GracefulStop()
		<-serveErr
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve grpc health: %w", err)
	}
}
