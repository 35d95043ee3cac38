package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/scrape/internal/cli"
	_ "github.com/law-makers/scrape/internal/plugins/listings"
)

func main() {
	// Cancel in-flight runs on interrupt; the controller still closes sessions.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
