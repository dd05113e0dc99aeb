package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create, inspect and remove investigation cases",
}

var caseCreateFlags struct {
	name           string
	number         string
	description    string
	investigator   string
	evidenceSource string
	priority       string
	collectionDate string
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a case and provision its namespace",
	Args:  cobra.NoArgs,
	RunE:  runCaseCreate,
}

var caseListFlags struct {
	status string
	search string
	limit  int
	offset int
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases, newest first",
	Args:  cobra.NoArgs,
	RunE:  runCaseList,
}

var caseShowFlags struct {
	logs int
}

var caseShowCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Show a case with its recent ingestion attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

var caseDeleteFlags struct {
	yes bool
}

var caseDeleteCmd = &cobra.Command{
	Use:   "delete <case-id>",
	Short: "Delete a case, its namespace and stored originals",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseDelete,
}

var caseStatusCmd = &cobra.Command{
	Use:   "status <case-id> <active|inactive|closed>",
	Short: "Change the status of a case",
	Args:  cobra.ExactArgs(2),
	RunE:  runCaseStatus,
}

func init() {
	f := caseCreateCmd.Flags()
	f.StringVar(&caseCreateFlags.name, "name", "", "Case name (required, unique)")
	f.StringVar(&caseCreateFlags.number, "number", "", "External case number (unique when set)")
	f.StringVar(&caseCreateFlags.description, "description", "", "Free-form description")
	f.StringVar(&caseCreateFlags.investigator, "investigator", "", "Lead investigator (required)")
	f.StringVar(&caseCreateFlags.evidenceSource, "evidence-source", "", "Host or image the evidence came from")
	f.StringVar(&caseCreateFlags.priority, "priority", string(domain.PriorityMedium), "low, medium, high or critical")
	f.StringVar(&caseCreateFlags.collectionDate, "collection-date", "", "When the evidence was collected (RFC3339 or YYYY-MM-DD)")
	_ = caseCreateCmd.MarkFlagRequired("name")
	_ = caseCreateCmd.MarkFlagRequired("investigator")

	lf := caseListCmd.Flags()
	lf.StringVar(&caseListFlags.status, "status", "", "Only cases with this status")
	lf.StringVar(&caseListFlags.search, "search", "", "Substring match on name, number or investigator")
	lf.IntVar(&caseListFlags.limit, "limit", 50, "Max cases to list")
	lf.IntVar(&caseListFlags.offset, "offset", 0, "Skip this many cases")

	caseShowCmd.Flags().IntVar(&caseShowFlags.logs, "logs", 20, "Number of ingestion log entries to show")
	caseDeleteCmd.Flags().BoolVar(&caseDeleteFlags.yes, "yes", false, "Confirm deletion")

	caseCmd.AddCommand(caseCreateCmd, caseListCmd, caseShowCmd, caseDeleteCmd, caseStatusCmd)
}

func runCaseCreate(cmd *cobra.Command, _ []string) error {
	in := domain.NewCase{
		Name:           caseCreateFlags.name,
		CaseNumber:     caseCreateFlags.number,
		Description:    caseCreateFlags.description,
		Investigator:   caseCreateFlags.investigator,
		EvidenceSource: caseCreateFlags.evidenceSource,
		Priority:       domain.CasePriority(strings.ToLower(caseCreateFlags.priority)),
	}
	if caseCreateFlags.collectionDate != "" {
		at, err := parseDate(caseCreateFlags.collectionDate)
		if err != nil {
			return err
		}
		in.CollectionDate = &at
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := app.Cases.Create(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	renderCase(cmd.OutOrStdout(), c)
	return nil
}

func runCaseList(cmd *cobra.Command, _ []string) error {
	status := domain.CaseStatus(caseListFlags.status)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", caseListFlags.status)
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cases, err := app.Cases.List(cmd.Context(), domain.CaseFilter{
		Status: status,
		Search: caseListFlags.search,
		Limit:  caseListFlags.limit,
		Offset: caseListFlags.offset,
	})
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	if len(cases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cases found.")
		return nil
	}
	renderCases(cmd.OutOrStdout(), cases)
	return nil
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := app.Cases.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("show case: %w", err)
	}
	out := cmd.OutOrStdout()
	renderCase(out, c)

	logs, err := app.Cases.IngestionLogs(cmd.Context(), c.ID, caseShowFlags.logs)
	if err != nil {
		return fmt.Errorf("ingestion logs: %w", err)
	}
	if len(logs) > 0 {
		fmt.Fprintln(out)
		renderLogs(out, logs)
	}
	return nil
}

func runCaseDelete(cmd *cobra.Command, args []string) error {
	if !caseDeleteFlags.yes {
		return fmt.Errorf("refusing to delete case %s without --yes", args[0])
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cases.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted case %s\n", args[0])
	return nil
}

func runCaseStatus(cmd *cobra.Command, args []string) error {
	status := domain.CaseStatus(strings.ToLower(args[1]))
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", args[1])
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := app.Cases.SetStatus(cmd.Context(), args[0], status)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Case %s is now %s\n", c.ID, c.Status)
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD", s)
}
