package domain

import "time"

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type TableInfo struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	RowCount  int64    `json:"row_count"`
	Columns   []Column `json:"columns"`
}

// Rows is a generic tabular result set.
type Rows struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type TablePage struct {
	Table      string `json:"table"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	Total      int64  `json:"total"`
	TotalPages int64  `json:"total_pages"`
	Rows
}

type CaseStatistics struct {
	TotalTables  int              `json:"total_tables"`
	TotalRecords int64            `json:"total_records"`
	Tables       map[string]int64 `json:"tables"`
}

// CaseExport is the full content of a case namespace.
type CaseExport struct {
	Case       Case            `json:"case"`
	ExportedAt time.Time       `json:"exported_at"`
	Tables     map[string]Rows `json:"tables"`
}
