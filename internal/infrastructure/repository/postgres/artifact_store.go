package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

// ArtifactStore writes normalized records into the tables of a case
// namespace, creating each table from the first record stored in it.
type ArtifactStore struct {
	db     *sql.DB
	tables *TableCache
}

func NewArtifactStore(db *sql.DB, tables *TableCache) *ArtifactStore {
	if tables == nil {
		tables = NewTableCache(0)
	}
	return &ArtifactStore{db: db, tables: tables}
}

// Open pins a connection and takes the namespace's session advisory lock on
// it. The lock is held until the writer is closed.
func (s *ArtifactStore) Open(ctx context.Context, namespace string) (ports.ArtifactWriter, error) {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open namespace", err)
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	key := lockKey(namespace)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire namespace lock: %w", err)
	}
	return &artifactWriter{conn: conn, namespace: namespace, lock: key, tables: s.tables}, nil
}

type artifactWriter struct {
	conn      *sql.Conn
	namespace string
	lock      int64
	tables    *TableCache
}

// Insert stores one record in its own transaction. The first record of a
// table fixes its columns; later records may use a subset of them and are
// rejected with domain.ErrSchemaMismatch otherwise.
func (w *artifactWriter) Insert(ctx context.Context, table string, rec *domain.Record) error {
	if err := domain.ValidateIdentifier(table); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "insert record", err)
	}
	cols, vals, err := columnsFor(rec)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "insert record", errors.New("record has no fields"))
	}

	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	known, created, err := w.ensureTable(ctx, tx, table, cols, vals)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if !slices.Contains(known, c) {
			return domain.WrapError(domain.ErrSchemaMismatch, "insert record",
				fmt.Errorf("column %s not in %s.%s", c, w.namespace, table))
		}
	}

	if _, err := tx.ExecContext(ctx, insertSQL(w.namespace, table, cols), vals...); err != nil {
		if hasCode(err, codeUndefinedTable) {
			w.tables.Forget(w.namespace, table)
		}
		return fmt.Errorf("insert into %s.%s: %w", w.namespace, table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}

	if created {
		w.tables.Put(w.namespace, table, known)
		slog.Info("table_created", "namespace", w.namespace, "table", table, "columns", len(known))
	}
	return nil
}

// ensureTable returns the column set of the table, creating the table inside
// tx when it does not exist yet.
func (w *artifactWriter) ensureTable(ctx context.Context, tx *sql.Tx, table string, cols []string, vals []any) ([]string, bool, error) {
	if known, ok := w.tables.Get(w.namespace, table); ok {
		return known, false, nil
	}

	rows, err := tx.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position
`, w.namespace, table)
	if err != nil {
		return nil, false, fmt.Errorf("lookup table columns: %w", err)
	}
	existing := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan table column: %w", err)
		}
		existing = append(existing, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, fmt.Errorf("iterate table columns: %w", err)
	}
	rows.Close()

	if len(existing) > 0 {
		w.tables.Put(w.namespace, table, existing)
		return existing, false, nil
	}

	if _, err := tx.ExecContext(ctx, createTableDDL(w.namespace, table, cols, vals)); err != nil {
		return nil, false, fmt.Errorf("create table %s.%s: %w", w.namespace, table, err)
	}
	return tableColumns(cols), true, nil
}

func (w *artifactWriter) Close() error {
	_, unlockErr := w.conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, w.lock)
	if unlockErr != nil {
		unlockErr = fmt.Errorf("release namespace lock: %w", unlockErr)
	}
	return errors.Join(unlockErr, w.conn.Close())
}
