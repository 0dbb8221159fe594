package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spiffcs/gqlc/cmd"
	"github.com/spiffcs/gqlc/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.New().ExecuteContext(ctx); err != nil {
		output.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
