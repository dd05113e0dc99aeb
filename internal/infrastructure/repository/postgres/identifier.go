package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

const (
	idColumn        = "id"
	createdAtColumn = "created_at"
)

func qualified(namespace, table string) string {
	return pgx.Identifier{namespace, table}.Sanitize()
}

func quoted(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// lockKey maps a namespace to the key of its session advisory lock.
func lockKey(namespace string) int64 {
	return int64(xxhash.Sum64String(namespace))
}

// columnType infers the DDL type of a column from the first value stored in it.
func columnType(name string, v any) string {
	switch name {
	case idColumn:
		return "BIGSERIAL PRIMARY KEY"
	case createdAtColumn:
		return "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"
	}
	switch v.(type) {
	case bool:
		return "BOOLEAN"
	case int, int32, int64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE PRECISION"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// columnsFor folds record keys into column names. Two keys folding to the
// same column make the record unusable.
func columnsFor(rec *domain.Record) ([]string, []any, error) {
	keys := rec.Keys()
	cols := make([]string, 0, len(keys))
	vals := make([]any, 0, len(keys))
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		col, err := domain.SanitizeIdentifier(k)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "column name", fmt.Errorf("key %q: %w", k, err))
		}
		if prev, dup := seen[col]; dup {
			return nil, nil, domain.WrapError(domain.ErrSchemaMismatch, "column name", fmt.Errorf("keys %q and %q both map to %s", prev, k, col))
		}
		seen[col] = k
		v, _ := rec.Get(k)
		cols = append(cols, col)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

// createTableDDL builds the CREATE TABLE statement for a record, adding id
// first and created_at last when the record lacks them.
func createTableDDL(namespace, table string, cols []string, vals []any) string {
	defs := make([]string, 0, len(cols)+2)
	has := func(name string) bool {
		for _, c := range cols {
			if c == name {
				return true
			}
		}
		return false
	}
	if !has(idColumn) {
		defs = append(defs, quoted(idColumn)+" "+columnType(idColumn, nil))
	}
	for i, c := range cols {
		defs = append(defs, quoted(c)+" "+columnType(c, vals[i]))
	}
	if !has(createdAtColumn) {
		defs = append(defs, quoted(createdAtColumn)+" "+columnType(createdAtColumn, nil))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", qualified(namespace, table), strings.Join(defs, ",\n\t"))
}

func insertSQL(namespace, table string, cols []string) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoted(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified(namespace, table), strings.Join(names, ", "), strings.Join(params, ", "))
}

// tableColumns is the column set a table was provisioned with.
func tableColumns(cols []string) []string {
	out := make([]string, 0, len(cols)+2)
	hasID, hasCreated := false, false
	for _, c := range cols {
		hasID = hasID || c == idColumn
		hasCreated = hasCreated || c == createdAtColumn
	}
	if !hasID {
		out = append(out, idColumn)
	}
	out = append(out, cols...)
	if !hasCreated {
		out = append(out, createdAtColumn)
	}
	return out
}
