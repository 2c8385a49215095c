// Package main provides the speechcast command line tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/speechcast/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
