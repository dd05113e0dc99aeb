package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <case-id> <sql>",
	Short: "Run a read-only SELECT inside a case namespace",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

var exportCmd = &cobra.Command{
	Use:   "export <case-id> <out.xlsx>",
	Short: "Write every table of a case to an Excel workbook",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	// Allow the statement unquoted across several arguments.
	rows, err := app.Explorer.Query(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	renderRows(cmd.OutOrStdout(), rows)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	out := args[1]
	if !strings.EqualFold(filepath.Ext(out), ".xlsx") {
		out += ".xlsx"
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	f, err := os.CreateTemp(filepath.Dir(out), ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := app.Explorer.Export(cmd.Context(), args[0], f); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported case %s to %s\n", args[0], out)
	return nil
}
