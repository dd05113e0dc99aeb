package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func TestRunReadOnlyScopesAndCapsRows(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	runner := NewQueryRunner(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout = 5000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^" + regexp.QuoteMeta(`SET LOCAL search_path TO "case_c1"`) + "$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT pid FROM processes").
		WillReturnRows(sqlmock.NewRows([]string{"pid"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))
	mock.ExpectRollback()

	rows, err := runner.RunReadOnly(context.Background(), "case_c1", "SELECT pid FROM processes", 2)
	if err != nil {
		t.Fatalf("RunReadOnly() error = %v", err)
	}
	if len(rows.Rows) != 2 || rows.Rows[1]["pid"] != int64(2) {
		t.Fatalf("unexpected rows %+v", rows.Rows)
	}
}

func TestRunReadOnlyMapsQueryErrors(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	runner := NewQueryRunner(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL search_path").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT nonsense").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	_, err := runner.RunReadOnly(context.Background(), "case_c1", "SELECT nonsense", 10)
	if !domain.IsKind(err, domain.ErrQueryRejected) {
		t.Fatalf("expected ErrQueryRejected, got %v", err)
	}
}
