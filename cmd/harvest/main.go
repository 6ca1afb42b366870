package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/naitridoshi/catalog-harvest/internal/cli"
)

func main() {
	// First signal cancels the run context so in-flight units can finish and
	// partial results get written; a second signal kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.ExecuteContext(ctx)
}
