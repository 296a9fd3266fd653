// Package cmd holds the startup plumbing shared by shipwatch binaries.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/louisbranch/shipwatch/internal/platform/config"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/platform/otel"
	"github.com/louisbranch/shipwatch/internal/platform/timeouts"
)

// Service names used for telemetry resources and error prefixes.
const (
	ServiceShipwatch    = "shipwatch"
	ServiceShipwatchCtl = "shipwatchctl"
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags, reporting failures as invalid config.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigInvalid, "parse flags", err)
	}
	return nil
}

// RunWithTelemetry sets up tracing for service, runs fn, then flushes spans
// within timeouts.Shutdown.
func RunWithTelemetry(ctx context.Context, service string, fn func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if fn == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s: otel shutdown: %v", service, err)
		}
	}()
	return fn(ctx)
}
