package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/claude/fitito/internal/models"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func describeError(err error) string {
	var conflict *models.ConflictError
	switch {
	case errors.As(err, &conflict):
		return "conflict: " + conflict.Msg
	case models.IsNotFound(err):
		return "not found: " + err.Error()
	default:
		return "error: " + err.Error()
	}
}
