package postgres

import (
	"database/sql"
	"fmt"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// collectRows reads a dynamic result set. maxRows <= 0 means no cap.
func collectRows(rows *sql.Rows, maxRows int) (*domain.Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	out := &domain.Rows{Columns: cols, Rows: make([]map[string]any, 0)}

	for rows.Next() {
		if maxRows > 0 && len(out.Rows) >= maxRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
