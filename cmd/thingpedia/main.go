// Package main provides the thingpedia registry command.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/reglet-dev/thingpedia-registry/config"
	"github.com/reglet-dev/thingpedia-registry/internal/cmd/thingpedia"
)

func main() {
	cfg, err := thingpedia.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := thingpedia.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
