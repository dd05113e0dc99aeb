package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

const testNamespace = "case_c1"

func openWriter(t *testing.T, mock sqlmock.Sqlmock, store *ArtifactStore) (ports.ArtifactWriter, func()) {
	t.Helper()
	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(lockKey(testNamespace)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := store.Open(context.Background(), testNamespace)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return w, func() {
		mock.ExpectExec("SELECT pg_advisory_unlock").
			WithArgs(lockKey(testNamespace)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		if err := w.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
}

func TestCreateTableDDL(t *testing.T) {
	rec := domain.NewRecord().
		Set("pid", int64(1)).
		Set("Command", "init").
		Set("cpu", 0.5).
		Set("root", true).
		Set("seen", time.Now()).
		Set("env", nil)
	cols, vals, err := columnsFor(rec)
	if err != nil {
		t.Fatalf("columnsFor() error = %v", err)
	}

	got := createTableDDL(testNamespace, "processes", cols, vals)
	want := `CREATE TABLE IF NOT EXISTS "case_c1"."processes" (
	"id" BIGSERIAL PRIMARY KEY,
	"pid" BIGINT,
	"command" TEXT,
	"cpu" DOUBLE PRECISION,
	"root" BOOLEAN,
	"seen" TIMESTAMP,
	"env" TEXT,
	"created_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
	if got != want {
		t.Fatalf("ddl mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestCreateTableDDLKeepsExistingIDAndCreatedAt(t *testing.T) {
	rec := domain.NewRecord().Set("created_at", time.Now()).Set("id", "x").Set("name", "a")
	cols, vals, _ := columnsFor(rec)

	got := createTableDDL(testNamespace, "t", cols, vals)
	want := `CREATE TABLE IF NOT EXISTS "case_c1"."t" (
	"created_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	"id" BIGSERIAL PRIMARY KEY,
	"name" TEXT
)`
	if got != want {
		t.Fatalf("ddl mismatch:\n%s\nwant:\n%s", got, want)
	}
	if cols := tableColumns(cols); len(cols) != 3 {
		t.Fatalf("no columns should be synthesized, got %v", cols)
	}
}

func TestColumnsForRejectsCollidingKeys(t *testing.T) {
	rec := domain.NewRecord().Set("Use%", "1").Set("use_", "2")
	if _, _, err := columnsFor(rec); !domain.IsKind(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestInsertProvisionsTableThenUsesCache(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	cache := NewTableCache(8)
	store := NewArtifactStore(db, cache)
	w, closeWriter := openWriter(t, mock, store)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs(testNamespace, "processes").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "case_c1"."processes"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "case_c1"."processes" ("pid", "command") VALUES ($1, $2)`)).
		WithArgs(int64(1), "init").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := w.Insert(ctx, "processes", domain.NewRecord().Set("pid", int64(1)).Set("command", "init")); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	if cols, ok := cache.Get(testNamespace, "processes"); !ok || len(cols) != 4 {
		t.Fatalf("expected cached columns [id pid command created_at], got %v", cols)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "case_c1"."processes" ("pid") VALUES ($1)`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := w.Insert(ctx, "processes", domain.NewRecord().Set("pid", int64(2))); err != nil {
		t.Fatalf("subset Insert() error = %v", err)
	}

	closeWriter()
}

func TestInsertRejectsUnknownColumnBeforeInsert(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	cache := NewTableCache(8)
	cache.Put(testNamespace, "processes", []string{"id", "pid", "created_at"})
	w, closeWriter := openWriter(t, mock, NewArtifactStore(db, cache))

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := w.Insert(context.Background(), "processes", domain.NewRecord().Set("pid", int64(1)).Set("extra", "x"))
	if !domain.IsKind(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	closeWriter()
}

func TestInsertUsesExistingTableColumns(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	cache := NewTableCache(8)
	w, closeWriter := openWriter(t, mock, NewArtifactStore(db, cache))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs(testNamespace, "boot_info").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("kernel_version").AddRow("created_at"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "case_c1"."boot_info" ("kernel_version") VALUES ($1)`)).
		WithArgs("6.1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := w.Insert(context.Background(), "boot_info", domain.NewRecord().Set("kernel_version", "6.1")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, ok := cache.Get(testNamespace, "boot_info"); !ok {
		t.Fatalf("existing columns should be cached")
	}

	closeWriter()
}

func TestInsertForgetsTableOnUndefinedTable(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	cache := NewTableCache(8)
	cache.Put(testNamespace, "processes", []string{"id", "pid", "created_at"})
	w, closeWriter := openWriter(t, mock, NewArtifactStore(db, cache))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").
		WillReturnError(&pgconn.PgError{Code: codeUndefinedTable, Message: "relation does not exist"})
	mock.ExpectRollback()

	if err := w.Insert(context.Background(), "processes", domain.NewRecord().Set("pid", int64(1))); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := cache.Get(testNamespace, "processes"); ok {
		t.Fatalf("stale columns should be forgotten")
	}

	closeWriter()
}

func TestOpenRejectsUnsafeNamespace(t *testing.T) {
	db, _, done := newMock(t)
	defer done()

	if _, err := NewArtifactStore(db, nil).Open(context.Background(), `case"; drop`); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
