package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

const maxCellWidth = 60

func newTable(w io.Writer, header ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	row := make(table.Row, len(header))
	for i, h := range header {
		row[i] = h
	}
	t.AppendHeader(row)
	return t
}

func renderCases(w io.Writer, cases []domain.Case) {
	t := newTable(w, "ID", "Name", "Number", "Investigator", "Priority", "Status", "Ingestion", "Artifacts", "Created")
	for _, c := range cases {
		t.AppendRow(table.Row{
			c.ID, c.Name, c.CaseNumber, c.Investigator, c.Priority, c.Status,
			c.IngestionStatus, c.TotalArtifacts, formatTime(c.CreatedAt),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 8, Align: text.AlignRight}})
	t.Render()
}

func renderCase(w io.Writer, c *domain.Case) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	collected := ""
	if c.CollectionDate != nil {
		collected = formatTime(*c.CollectionDate)
	}
	t.AppendRows([]table.Row{
		{"ID", c.ID},
		{"Name", c.Name},
		{"Case number", c.CaseNumber},
		{"Description", c.Description},
		{"Investigator", c.Investigator},
		{"Evidence source", c.EvidenceSource},
		{"Priority", c.Priority},
		{"Collection date", collected},
		{"Status", c.Status},
		{"Namespace", c.Namespace},
		{"Ingestion status", c.IngestionStatus},
		{"Artifacts", c.TotalArtifacts},
		{"Bytes", c.TotalBytes},
		{"Created", formatTime(c.CreatedAt)},
		{"Updated", formatTime(c.UpdatedAt)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: maxCellWidth}})
	t.Render()
}

func renderLogs(w io.Writer, logs []domain.IngestionLog) {
	t := newTable(w, "Log", "File", "Type", "Status", "Records", "Bytes", "Started", "Seconds", "Error")
	for _, l := range logs {
		seconds := ""
		if l.ProcessingSeconds != nil {
			seconds = fmt.Sprintf("%.2f", *l.ProcessingSeconds)
		}
		t.AppendRow(table.Row{
			l.ID, l.Filename, l.ArtifactType, l.Status, l.RecordsProcessed,
			l.FileSize, formatTime(l.StartedAt), seconds, l.ErrorMessage,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 9, WidthMax: maxCellWidth}})
	t.Render()
}

type ingestRow struct {
	File   string
	Result domain.IngestResult
}

func renderIngest(w io.Writer, rows []ingestRow) {
	t := newTable(w, "File", "Type", "OK", "Records", "Inserted", "Errors", "Log", "Message")
	inserted, failed := 0, 0
	for _, r := range rows {
		stats := r.Result.Stats
		inserted += stats.InsertedRecords
		if !r.Result.Success {
			failed++
		}
		t.AppendRow(table.Row{
			r.File, stats.ArtifactType, yesNo(r.Result.Success), stats.TotalRecords,
			stats.InsertedRecords, stats.Errors, r.Result.LogID, r.Result.Message,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d files", len(rows)), "", fmt.Sprintf("%d failed", failed), "", inserted})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 8, WidthMax: maxCellWidth}})
	t.Render()
}

func renderRows(w io.Writer, rows *domain.Rows) {
	t := newTable(w, rows.Columns...)
	for _, r := range rows.Rows {
		row := make(table.Row, len(rows.Columns))
		for i, col := range rows.Columns {
			row[i] = cellText(r[col])
		}
		t.AppendRow(row)
	}
	configs := make([]table.ColumnConfig, len(rows.Columns))
	for i := range rows.Columns {
		configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: maxCellWidth}
	}
	t.SetColumnConfigs(configs)
	t.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(rows.Rows))
}

func cellText(v any) string {
	switch typed := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return formatTime(typed)
	case string:
		return strings.ReplaceAll(typed, "\n", " ")
	default:
		return fmt.Sprint(typed)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
