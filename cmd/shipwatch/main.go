// Package main starts the shipwatch service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	shipwatchcmd "github.com/louisbranch/shipwatch/internal/cmd/shipwatch"
	entrypoint "github.com/louisbranch/shipwatch/internal/platform/cmd"
	"github.com/louisbranch/shipwatch/internal/platform/config"
)

func main() {
	cfg, err := shipwatchcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exit(os.Stderr, entrypoint.ServiceShipwatch, err)
	}
	log.SetPrefix("[SHIPWATCH] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := shipwatchcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
