package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

const (
	defaultPerPage = 50
	maxPerPage     = 1000
	maxExportRows  = 1_000_000
)

var (
	readOnlyPrefixes = []string{"SELECT", "WITH"}
	mutatingKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"}
)

// ValidateReadOnlyQuery applies the keyword guard to user SQL. Matching is a
// plain substring test on the upper-cased text, so identifiers such as
// "created_at" are rejected too. The read-only transaction the query later
// runs in is what actually prevents writes.
func ValidateReadOnlyQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimRight(q, "; \t\r\n")
	if q == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate query", errors.New("query is required"))
	}
	upper := strings.ToUpper(q)
	if !slices.ContainsFunc(readOnlyPrefixes, func(p string) bool { return strings.HasPrefix(upper, p) }) {
		return "", domain.WrapError(domain.ErrQueryRejected, "validate query", errors.New("only SELECT queries are allowed"))
	}
	for _, kw := range mutatingKeywords {
		if strings.Contains(upper, kw) {
			return "", domain.WrapError(domain.ErrQueryRejected, "validate query", fmt.Errorf("keyword %s is not allowed", kw))
		}
	}
	if strings.Contains(q, ";") {
		return "", domain.WrapError(domain.ErrQueryRejected, "validate query", errors.New("multiple statements are not allowed"))
	}
	return q, nil
}

type ExplorerUseCase struct {
	cases        ports.CaseRepository
	namespaces   ports.NamespaceManager
	queries      ports.QueryRunner
	workbook     ports.WorkbookWriter
	queryMaxRows int
	now          func() time.Time
}

func NewExplorerUseCase(
	cases ports.CaseRepository,
	namespaces ports.NamespaceManager,
	queries ports.QueryRunner,
	workbook ports.WorkbookWriter,
	queryMaxRows int,
) *ExplorerUseCase {
	return &ExplorerUseCase{
		cases:        cases,
		namespaces:   namespaces,
		queries:      queries,
		workbook:     workbook,
		queryMaxRows: queryMaxRows,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ExplorerUseCase) Tables(ctx context.Context, caseID string) ([]domain.TableInfo, error) {
	c, err := uc.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	tables, err := uc.namespaces.ListTables(ctx, c.Namespace)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Table returns one page of a table, newest rows first.
func (uc *ExplorerUseCase) Table(ctx context.Context, caseID, table string, page, perPage int) (*domain.TablePage, error) {
	c, err := uc.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateIdentifier(table); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read table", err)
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	rows, total, err := uc.namespaces.ReadTable(ctx, c.Namespace, table, (page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", table, err)
	}
	return &domain.TablePage{
		Table:      table,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + int64(perPage) - 1) / int64(perPage),
		Rows:       *rows,
	}, nil
}

func (uc *ExplorerUseCase) Query(ctx context.Context, caseID, query string) (*domain.Rows, error) {
	c, err := uc.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	q, err := ValidateReadOnlyQuery(query)
	if err != nil {
		return nil, err
	}
	rows, err := uc.queries.RunReadOnly(ctx, c.Namespace, q, uc.queryMaxRows)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return rows, nil
}

func (uc *ExplorerUseCase) Statistics(ctx context.Context, caseID string) (*domain.CaseStatistics, error) {
	tables, err := uc.Tables(ctx, caseID)
	if err != nil {
		return nil, err
	}
	stats := &domain.CaseStatistics{
		TotalTables: len(tables),
		Tables:      make(map[string]int64, len(tables)),
	}
	for _, t := range tables {
		stats.Tables[t.Name] = t.RowCount
		stats.TotalRecords += t.RowCount
	}
	return stats, nil
}

// Export writes every table of the case as one workbook.
func (uc *ExplorerUseCase) Export(ctx context.Context, caseID string, w io.Writer) error {
	c, err := uc.loadCase(ctx, caseID)
	if err != nil {
		return err
	}
	tables, err := uc.namespaces.ListTables(ctx, c.Namespace)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	export := &domain.CaseExport{
		Case:       *c,
		ExportedAt: uc.now(),
		Tables:     make(map[string]domain.Rows, len(tables)),
	}
	for _, t := range tables {
		rows, _, err := uc.namespaces.ReadTable(ctx, c.Namespace, t.Name, 0, maxExportRows)
		if err != nil {
			return fmt.Errorf("read table %s: %w", t.Name, err)
		}
		export.Tables[t.Name] = *rows
	}

	if err := uc.workbook.WriteCase(w, export); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (uc *ExplorerUseCase) loadCase(ctx context.Context, caseID string) (*domain.Case, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load case", errors.New("case id is required"))
	}
	c, err := uc.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}
