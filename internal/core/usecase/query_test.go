package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func TestValidateReadOnlyQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr error
	}{
		{name: "select", query: "select * from processes", want: "select * from processes"},
		{name: "with", query: "  WITH x AS (SELECT 1) SELECT * FROM x ;  ", want: "WITH x AS (SELECT 1) SELECT * FROM x"},
		{name: "empty", query: "  ;", wantErr: domain.ErrInvalidInput},
		{name: "not select", query: "EXPLAIN SELECT 1", wantErr: domain.ErrQueryRejected},
		{name: "drop", query: "SELECT 1; DROP TABLE processes", wantErr: domain.ErrQueryRejected},
		{name: "keyword inside identifier", query: "SELECT created_at FROM processes", wantErr: domain.ErrQueryRejected},
		{name: "stacked", query: "SELECT 1; SELECT 2", wantErr: domain.ErrQueryRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateReadOnlyQuery(tt.query)
			if tt.wantErr != nil {
				if !domain.IsKind(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("query = %q, want %q", got, tt.want)
			}
		})
	}
}

func newExplorerFixture() (*ExplorerUseCase, *namespaceFake, *queryRunnerFake, *workbookFake) {
	cases := newCaseRepoFake(&domain.Case{ID: "c1", Name: "case", Namespace: "case_c1"})
	ns := &namespaceFake{
		tables: []domain.TableInfo{
			{Namespace: "case_c1", Name: "processes", RowCount: 120},
			{Namespace: "case_c1", Name: "arp_table", RowCount: 3},
		},
		rows: map[string]*domain.Rows{
			"processes": {Columns: []string{"pid"}, Rows: []map[string]any{{"pid": int64(1)}}},
			"arp_table": {Columns: []string{"address"}, Rows: []map[string]any{{"address": "10.0.0.1"}}},
		},
	}
	runner := &queryRunnerFake{}
	wb := &workbookFake{}
	return NewExplorerUseCase(cases, ns, runner, wb, 500), ns, runner, wb
}

func TestExplorerTablePaging(t *testing.T) {
	uc, ns, _, _ := newExplorerFixture()
	ctx := context.Background()

	page, err := uc.Table(ctx, "c1", "processes", 3, 0)
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if page.Page != 3 || page.PerPage != defaultPerPage || ns.lastRead != [2]int{100, 50} {
		t.Fatalf("unexpected paging %+v read=%v", page, ns.lastRead)
	}

	if _, err := uc.Table(ctx, "c1", "processes", 0, 5000); err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if ns.lastRead != [2]int{0, maxPerPage} {
		t.Fatalf("per page should be capped, read=%v", ns.lastRead)
	}
}

func TestExplorerTableRejectsUnsafeName(t *testing.T) {
	uc, _, _, _ := newExplorerFixture()

	if _, err := uc.Table(context.Background(), "c1", "processes; drop", 1, 10); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExplorerQueryUsesCaseNamespace(t *testing.T) {
	uc, _, runner, _ := newExplorerFixture()

	rows, err := uc.Query(context.Background(), "c1", "SELECT count(*) AS n FROM processes;")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if runner.namespace != "case_c1" || runner.maxRows != 500 || runner.query != "SELECT count(*) AS n FROM processes" {
		t.Fatalf("unexpected runner call %+v", runner)
	}
	if len(rows.Rows) != 1 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if _, err := uc.Query(context.Background(), "c1", "DELETE FROM processes"); !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected rejected query, got %v", err)
	}
	if _, err := uc.Query(context.Background(), "missing", "SELECT 1"); !domain.IsKind(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected case not found, got %v", err)
	}
}

func TestExplorerStatistics(t *testing.T) {
	uc, _, _, _ := newExplorerFixture()

	stats, err := uc.Statistics(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalTables != 2 || stats.TotalRecords != 123 || stats.Tables["arp_table"] != 3 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
}

func TestExplorerExport(t *testing.T) {
	uc, _, _, wb := newExplorerFixture()
	var buf bytes.Buffer

	if err := uc.Export(context.Background(), "c1", &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.String() != "xlsx" {
		t.Fatalf("workbook output not written")
	}
	if wb.export.Case.ID != "c1" || len(wb.export.Tables) != 2 || wb.export.ExportedAt.IsZero() {
		t.Fatalf("unexpected export %+v", wb.export)
	}
}
