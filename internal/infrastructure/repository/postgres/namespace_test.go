package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func TestCreateAndDropNamespace(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	cache := NewTableCache(8)
	cache.Put("case_c1", "processes", []string{"id"})
	cache.Put("case_c2", "processes", []string{"id"})
	repo := NewNamespaceRepository(db, cache)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "case_c1"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP SCHEMA IF EXISTS "case_c1" CASCADE`)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.CreateNamespace(ctx, "case_c1"); err != nil {
		t.Fatalf("CreateNamespace() error = %v", err)
	}
	if err := repo.DropNamespace(ctx, "case_c1"); err != nil {
		t.Fatalf("DropNamespace() error = %v", err)
	}
	if _, ok := cache.Get("case_c1", "processes"); ok {
		t.Fatalf("dropped namespace should leave the cache")
	}
	if _, ok := cache.Get("case_c2", "processes"); !ok {
		t.Fatalf("other namespaces must stay cached")
	}
}

func TestNamespaceRejectsUnsafeIdentifier(t *testing.T) {
	db, _, done := newMock(t)
	defer done()
	repo := NewNamespaceRepository(db, nil)

	if err := repo.CreateNamespace(context.Background(), "Case-1"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := repo.ReadTable(context.Background(), "case_c1", `x" OR 1=1`, 0, 10); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListTablesGroupsColumns(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewNamespaceRepository(db, nil)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("case_c1").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("arp_table", "id", "bigint", "NO").
			AddRow("arp_table", "address", "text", "YES").
			AddRow("processes", "id", "bigint", "NO"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "case_c1"."arp_table"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "case_c1"."processes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	got, err := repo.ListTables(context.Background(), "case_c1")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	want := []domain.TableInfo{
		{Namespace: "case_c1", Name: "arp_table", RowCount: 3, Columns: []domain.Column{
			{Name: "id", Type: "bigint"},
			{Name: "address", Type: "text", Nullable: true},
		}},
		{Namespace: "case_c1", Name: "processes", Columns: []domain.Column{{Name: "id", Type: "bigint"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListTables() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTablePage(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewNamespaceRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "case_c1"."processes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(120)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "case_c1"."processes" ORDER BY "id" DESC LIMIT $1 OFFSET $2`)).
		WithArgs(50, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "command"}).AddRow(int64(20), []byte("sshd")))

	rows, total, err := repo.ReadTable(context.Background(), "case_c1", "processes", 100, 50)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if total != 120 {
		t.Fatalf("total = %d, want 120", total)
	}
	want := &domain.Rows{Columns: []string{"id", "command"}, Rows: []map[string]any{{"id": int64(20), "command": "sshd"}}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("ReadTable() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTableMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewNamespaceRepository(db, nil)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(&pgconn.PgError{Code: codeUndefinedTable})

	if _, _, err := repo.ReadTable(context.Background(), "case_c1", "nope", 0, 10); !domain.IsKind(err, domain.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}
