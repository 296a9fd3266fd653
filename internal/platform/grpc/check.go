package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckStage names where a health check failed.
type CheckStage string

const (
	CheckStageConnect CheckStage = "connect"
	CheckStageHealth  CheckStage = "health"
)

// HealthCheckError wraps health check failures with the stage that failed.
type HealthCheckError struct {
	Addr  string
	Stage CheckStage
	Err   error
}

func (e *HealthCheckError) Error() string {
	return fmt.Sprintf("health check %s %s: %v", e.Addr, e.Stage, e.Err)
}

func (e *HealthCheckError) Unwrap() error {
	return e.Err
}

const (
	checkCallTimeout = time.Second
	checkMaxBackoff  = time.Second
)

// CheckHealth polls the health service at addr until it reports SERVING or
// timeout elapses.
func CheckHealth(ctx context.Context, addr string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := gogrpc.NewClient(addr,
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return &HealthCheckError{Addr: addr, Stage: CheckStageConnect, Err: err}
	}
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	var last error
	for {
		callCtx, cancel := context.WithTimeout(ctx, checkCallTimeout)
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{})
		cancel()
		switch {
		case err != nil:
			last = err
		case response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			return nil
		default:
			last = fmt.Errorf("status %s", response.GetStatus())
		}

		select {
		case <-ctx.Done():
			return &HealthCheckError{Addr: addr, Stage: CheckStageHealth, Err: errors.Join(last, ctx.Err())}
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, checkMaxBackoff)
	}
}
