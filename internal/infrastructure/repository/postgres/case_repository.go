package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

const caseColumns = `id, name, case_number, description, investigator, evidence_source, priority, collection_date,
	status, namespace, total_artifacts, total_bytes, ingestion_status, metadata, created_at, updated_at`

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) Create(ctx context.Context, c *domain.Case) error {
	metadata := []byte(c.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cases (`+caseColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		c.ID, c.Name, nullString(c.CaseNumber), c.Description, c.Investigator, c.EvidenceSource,
		string(c.Priority), c.CollectionDate, string(c.Status), c.Namespace, c.TotalArtifacts,
		c.TotalBytes, string(c.IngestionStatus), metadata, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return domain.WrapError(domain.ErrConflict, "insert case", err)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+caseColumns+`
FROM cases
WHERE id = $1
`, id)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCaseNotFound, "get case", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get case by id: %w", err)
	}
	return &c, nil
}

// List returns cases newest first. Search matches name, case number and
// investigator case-insensitively.
func (r *CaseRepository) List(ctx context.Context, filter domain.CaseFilter) ([]domain.Case, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR case_number ILIKE $%d OR investigator ILIKE $%d)", n, n, n))
	}

	query := "SELECT " + caseColumns + "\nFROM cases\n"
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf("ORDER BY created_at DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

func (r *CaseRepository) UpdateStatus(ctx context.Context, id string, status domain.CaseStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE cases
SET status = $2, updated_at = $3
WHERE id = $1
`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return requireAffected(res, domain.ErrCaseNotFound, "update case status", id)
}

func (r *CaseRepository) UpdateRollup(ctx context.Context, id string, rollup domain.CaseRollup) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE cases
SET total_artifacts = $2, total_bytes = $3, ingestion_status = $4, updated_at = $5
WHERE id = $1
`, id, rollup.TotalArtifacts, rollup.TotalBytes, string(rollup.IngestionStatus), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update case rollup: %w", err)
	}
	return requireAffected(res, domain.ErrCaseNotFound, "update case rollup", id)
}

// Delete removes the case row; its ingestion logs go with it via ON DELETE CASCADE.
func (r *CaseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return requireAffected(res, domain.ErrCaseNotFound, "delete case", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (domain.Case, error) {
	var (
		c              domain.Case
		caseNumber     sql.NullString
		collectionDate sql.NullTime
		priority       string
		status         string
		ingestion      string
		metadata       []byte
	)
	err := row.Scan(
		&c.ID, &c.Name, &caseNumber, &c.Description, &c.Investigator, &c.EvidenceSource,
		&priority, &collectionDate, &status, &c.Namespace, &c.TotalArtifacts, &c.TotalBytes,
		&ingestion, &metadata, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Case{}, err
	}
	c.CaseNumber = caseNumber.String
	if collectionDate.Valid {
		t := collectionDate.Time
		c.CollectionDate = &t
	}
	c.Priority = domain.CasePriority(priority)
	c.Status = domain.CaseStatus(status)
	c.IngestionStatus = domain.IngestionStatus(ingestion)
	if len(metadata) > 0 && string(metadata) != "{}" {
		c.Metadata = metadata
	}
	return c, nil
}

func requireAffected(res sql.Result, kind error, op string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.WrapError(kind, op, fmt.Errorf("id=%v", id))
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
