package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classroll/rollcall/cmd"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	if err := cmd.RootCommand(settings, version).ExecuteContext(ctx); err != nil {
		telemetry.CaptureError(err, "cli")
		telemetry.Shutdown(telemetry.DefaultFlushTimeout)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
