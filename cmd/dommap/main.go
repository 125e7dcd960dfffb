// cmd/dommap/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/dommap/internal/cli"
)

func main() {
	// Cancel in-flight fetches on interrupt so browsers and temp profiles are cleaned up
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
