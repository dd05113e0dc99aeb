package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lite-ingest/internal/bootstrap"
	"github.com/kirillkom/lite-ingest/internal/config"
	"github.com/kirillkom/lite-ingest/internal/observability/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "lite",
	Short: "Ingest Linux forensic collections into per-case Postgres schemas",
	Long: "lite manages investigation cases and loads the JSON artifacts produced by\n" +
		"the collection tool into one Postgres schema per case.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	// stdout is reserved for command output.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "lite", cfg.LogLevel))
	return cfg
}

func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	app, err := bootstrap.New(cmd.Context(), loadConfig(), "lite")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
