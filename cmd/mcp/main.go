package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/lite-ingest/internal/adapters/mcp"
	"github.com/kirillkom/lite-ingest/internal/bootstrap"
	"github.com/kirillkom/lite-ingest/internal/config"
	"github.com/kirillkom/lite-ingest/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := mcpadapter.Run(mcpadapter.NewServer(app.Cases, app.Explorer, app.Registry)); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
