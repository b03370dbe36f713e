// Package main is the entry point for the wayfarer command-line client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkordes/wayfarer/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := (&cli.App{}).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
