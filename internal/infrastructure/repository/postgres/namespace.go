package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// NamespaceRepository manages the per-case schemas.
type NamespaceRepository struct {
	db     *sql.DB
	tables *TableCache
}

func NewNamespaceRepository(db *sql.DB, tables *TableCache) *NamespaceRepository {
	if tables == nil {
		tables = NewTableCache(0)
	}
	return &NamespaceRepository{db: db, tables: tables}
}

func (r *NamespaceRepository) CreateNamespace(ctx context.Context, namespace string) error {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "create namespace", err)
	}
	if _, err := r.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted(namespace)); err != nil {
		return fmt.Errorf("create schema %s: %w", namespace, err)
	}
	slog.Info("namespace_created", "namespace", namespace)
	return nil
}

func (r *NamespaceRepository) DropNamespace(ctx context.Context, namespace string) error {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "drop namespace", err)
	}
	if _, err := r.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+quoted(namespace)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", namespace, err)
	}
	r.tables.ForgetNamespace(namespace)
	slog.Info("namespace_dropped", "namespace", namespace)
	return nil
}

// ListTables returns every base table of the namespace with its columns and
// exact row count, ordered by name.
func (r *NamespaceRepository) ListTables(ctx context.Context, namespace string) ([]domain.TableInfo, error) {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list tables", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
	ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position
`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TableInfo, 0)
	for rows.Next() {
		var (
			table    string
			col      domain.Column
			nullable string
		)
		if err := rows.Scan(&table, &col.Name, &col.Type, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = nullable == "YES"
		if n := len(out); n == 0 || out[n-1].Name != table {
			out = append(out, domain.TableInfo{Namespace: namespace, Name: table})
		}
		last := &out[len(out)-1]
		last.Columns = append(last.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	rows.Close()

	for i := range out {
		n, err := r.count(ctx, namespace, out[i].Name)
		if err != nil {
			return nil, err
		}
		out[i].RowCount = n
	}
	return out, nil
}

// ReadTable returns a page of rows, newest first, and the table's total count.
func (r *NamespaceRepository) ReadTable(ctx context.Context, namespace, table string, offset, limit int) (*domain.Rows, int64, error) {
	if err := domain.ValidateIdentifier(namespace); err != nil {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "read table", err)
	}
	if err := domain.ValidateIdentifier(table); err != nil {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "read table", err)
	}

	total, err := r.count(ctx, namespace, table)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC LIMIT $1 OFFSET $2", qualified(namespace, table), quoted(idColumn)),
		limit, offset)
	if err != nil {
		return nil, 0, r.tableErr("read table", namespace, table, err)
	}
	defer rows.Close()

	out, err := collectRows(rows, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("read table %s: %w", table, err)
	}
	return out, total, nil
}

func (r *NamespaceRepository) count(ctx context.Context, namespace, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualified(namespace, table)).Scan(&n)
	if err != nil {
		return 0, r.tableErr("count rows", namespace, table, err)
	}
	return n, nil
}

func (r *NamespaceRepository) tableErr(op, namespace, table string, err error) error {
	if hasCode(err, codeUndefinedTable) {
		r.tables.Forget(namespace, table)
		return domain.WrapError(domain.ErrTableNotFound, op, fmt.Errorf("%s.%s", namespace, table))
	}
	return fmt.Errorf("%s %s.%s: %w", op, namespace, table, err)
}
