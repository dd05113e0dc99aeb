package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// QueryRunner executes user SQL against one namespace inside a read-only
// transaction with a statement timeout.
type QueryRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewQueryRunner(db *sql.DB, timeout time.Duration) *QueryRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &QueryRunner{db: db, timeout: timeout}
}

func (r *QueryRunner) RunReadOnly(ctx context.Context, namespace, query string, maxRows int) (*domain.Rows, error) {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run query", err)
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", r.timeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SET LOCAL search_path TO "+quoted(namespace)); err != nil {
		return nil, fmt.Errorf("set search path: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		if hasCode(err, codeUndefinedTable) {
			return nil, domain.WrapError(domain.ErrTableNotFound, "run query", err)
		}
		return nil, domain.WrapError(domain.ErrQueryRejected, "run query", err)
	}
	defer rows.Close()

	out, err := collectRows(rows, maxRows)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return out, nil
}
