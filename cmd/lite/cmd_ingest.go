package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <case-id> <file|dir>...",
	Short: "Ingest artifact JSON files into a case",
	Long: "Each file is ingested on its own; a failing file never stops the batch.\n" +
		"Directories are walked for *.json files.",
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

var retryCmd = &cobra.Command{
	Use:   "retry <log-id>",
	Short: "Re-run a failed ingestion from its retained original file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var logCmd = &cobra.Command{
	Use:   "log <log-id>",
	Short: "Show one ingestion log entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file|dir>...",
	Short: "Classify artifact files without a database",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var pruneFlags struct {
	olderThan time.Duration
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished ingestion log entries older than a retention window",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneFlags.olderThan, "older-than", 90*24*time.Hour, "Retention window, e.g. 720h")
}

func runIngest(cmd *cobra.Command, args []string) error {
	caseID := args[0]
	files, err := collectFiles(args[1:])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json files found")
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Cases.Get(cmd.Context(), caseID); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	rows := make([]ingestRow, 0, len(files))
	failed := 0
	for _, path := range files {
		if cmd.Context().Err() != nil {
			break
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res := app.Ingest.Ingest(cmd.Context(), caseID, filepath.Base(path), body)
		if !res.Success {
			failed++
		}
		rows = append(rows, ingestRow{File: path, Result: res})
	}

	renderIngest(cmd.OutOrStdout(), rows)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(rows))
	}
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	logID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid log id %q", args[0])
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Ingest.Retry(cmd.Context(), logID)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	renderIngest(cmd.OutOrStdout(), []ingestRow{{File: fmt.Sprintf("log %d", logID), Result: res}})
	if !res.Success {
		return fmt.Errorf("retry of log %d failed: %s", logID, res.Message)
	}
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	logID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid log id %q", args[0])
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	entry, err := app.Cases.IngestionLog(cmd.Context(), logID)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	renderLogs(cmd.OutOrStdout(), []domain.IngestionLog{*entry})
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	registry, err := artifact.LoadRegistry(cfg.FieldFiltersPath)
	if err != nil {
		return err
	}
	// Validate only consults the registry.
	validator := usecase.NewIngestUseCase(nil, nil, nil, nil, nil, nil, registry)

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout(), "File", "Valid", "Type", "Table", "Message")
	invalid := 0
	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		v := validator.Validate(filepath.Base(path), body)
		if !v.Valid {
			invalid++
		}
		t.AppendRow(table.Row{path, yesNo(v.Valid), v.ArtifactType, v.Table, v.Message})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: maxCellWidth}})
	t.Render()

	if invalid > 0 {
		return fmt.Errorf("%d of %d files are not ingestible", invalid, len(files))
	}
	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Ingest.PruneLogs(cmd.Context(), pruneFlags.olderThan)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d ingestion log entries older than %s\n", n, pruneFlags.olderThan)
	return nil
}

// collectFiles expands directories into the *.json files beneath them.
// Explicit file arguments are kept whatever their extension.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
