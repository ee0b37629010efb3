// Command server runs the labsim HTTP API.
//
// Configuration is read from the YAML file named by CONFIG_PATH (if any) and
// overridden by environment variables. See internal/config.
//
// Exit codes: 0 = clean shutdown, 1 = error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/labsim/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "labsim: %v\n", err)
		os.Exit(1)
	}
}
