// Package grpc holds the gRPC server shipwatch exposes to orchestrators and
// operators, and the CLI check that reads its health.
package grpc

import (
	"context"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is a gRPC server with the standard health service registered.
// Further services register on Server before Serve.
type HealthServer struct {
	Server *gogrpc.Server
	Health *health.Server
}

// NewHealthServer builds a traced gRPC server with the health service
// registered and reporting NOT_SERVING until SetServing is called.
func NewHealthServer() *HealthServer {
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{Server: server, Health: healthServer}
}

// SetServing flips the overall status.
func (h *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.Health.SetServingStatus("", status)
}

// Serve runs the server on listener until ctx ends, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- h.Server.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		h.Health.Shutdown()
		h.Server.GracefulStop()
		<-serveErr
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve gRPC health: %w", err)
		}
		return nil
	}
}
