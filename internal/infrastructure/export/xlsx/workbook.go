// Package xlsx renders case exports as Excel workbooks.
package xlsx

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

const (
	summarySheet  = "Case"
	maxSheetName  = 31
	maxCellLength = excelize.TotalCellChars
)

// Writer implements ports.WorkbookWriter. The first sheet carries the case
// metadata and per-table row counts; every table gets a sheet of its own.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (Writer) WriteCase(w io.Writer, export *domain.CaseExport) error {
	if export == nil {
		return domain.WrapError(domain.ErrInvalidInput, "xlsx write case", fmt.Errorf("export is nil"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("xlsx rename summary sheet: %w", err)
	}

	tables := make([]string, 0, len(export.Tables))
	for name := range export.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	if err := writeSummary(f, export, tables); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, table := range tables {
		sheet := sheetName(table, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx new sheet %s: %w", sheet, err)
		}
		if err := writeTable(f, sheet, export.Tables[table]); err != nil {
			return fmt.Errorf("xlsx write table %s: %w", table, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, export *domain.CaseExport, tables []string) error {
	c := export.Case
	collected := ""
	if c.CollectionDate != nil {
		collected = c.CollectionDate.UTC().Format(time.RFC3339)
	}
	rows := [][]any{
		{"Case ID", c.ID},
		{"Name", c.Name},
		{"Case number", c.CaseNumber},
		{"Investigator", c.Investigator},
		{"Evidence source", c.EvidenceSource},
		{"Priority", string(c.Priority)},
		{"Status", string(c.Status)},
		{"Collection date", collected},
		{"Namespace", c.Namespace},
		{"Ingestion status", string(c.IngestionStatus)},
		{"Total artifacts", c.TotalArtifacts},
		{"Total bytes", c.TotalBytes},
		{"Exported at", export.ExportedAt.UTC().Format(time.RFC3339)},
		{},
		{"Table", "Rows"},
	}
	for _, table := range tables {
		rows = append(rows, []any{table, len(export.Tables[table].Rows)})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return fmt.Errorf("xlsx write summary: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 20)
}

func writeTable(f *excelize.File, sheet string, data domain.Rows) error {
	header := make([]any, len(data.Columns))
	for i, col := range data.Columns {
		header[i] = col
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range data.Rows {
		values := make([]any, len(data.Columns))
		for j, col := range data.Columns {
			values[j] = cellValue(row[col])
		}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	if len(data.Columns) > 0 {
		return f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func cellValue(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case string:
		return truncate(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case bool, int, int32, int64, float32, float64:
		return typed
	default:
		return truncate(fmt.Sprint(typed))
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxCellLength {
		return s
	}
	return string([]rune(s)[:maxCellLength])
}

// sheetName fits a table name into Excel's sheet naming rules and keeps it
// unique within the workbook, compared case-insensitively.
func sheetName(table string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, table)
	if base == "" {
		base = "table"
	}
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		name = cut + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
