// Package main runs the shipwatch operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/shipwatch/internal/cmd/shipwatchctl"
	entrypoint "github.com/louisbranch/shipwatch/internal/platform/cmd"
	"github.com/louisbranch/shipwatch/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := shipwatchctl.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	config.Exit(os.Stderr, entrypoint.ServiceShipwatchCtl, err)
}
