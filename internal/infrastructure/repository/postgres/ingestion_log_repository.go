package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

const logColumns = `id, case_id, filename, storage_key, file_size, artifact_type, status, records_processed,
	error_message, started_at, completed_at, processing_seconds`

type IngestionLogRepository struct {
	db *sql.DB
}

func NewIngestionLogRepository(db *sql.DB) *IngestionLogRepository {
	return &IngestionLogRepository{db: db}
}

func (r *IngestionLogRepository) Create(ctx context.Context, entry *domain.IngestionLog) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO ingestion_logs (case_id, filename, storage_key, file_size, artifact_type, status, started_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, entry.CaseID, entry.Filename, entry.StorageKey, entry.FileSize, entry.ArtifactType, string(entry.Status), entry.StartedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}

func (r *IngestionLogRepository) GetByID(ctx context.Context, id int64) (*domain.IngestionLog, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+logColumns+`
FROM ingestion_logs
WHERE id = $1
`, id)

	entry, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrLogNotFound, "get ingestion log", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("get ingestion log by id: %w", err)
	}
	return &entry, nil
}

// MarkProcessing reopens an entry for a retry and clears the previous outcome.
func (r *IngestionLogRepository) MarkProcessing(ctx context.Context, id int64, startedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingestion_logs
SET status = $2, started_at = $3, error_message = '', completed_at = NULL, processing_seconds = NULL
WHERE id = $1
`, id, string(domain.LogProcessing), startedAt)
	if err != nil {
		return fmt.Errorf("mark ingestion log processing: %w", err)
	}
	return requireAffected(res, domain.ErrLogNotFound, "mark ingestion log processing", id)
}

func (r *IngestionLogRepository) Finish(ctx context.Context, entry *domain.IngestionLog) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingestion_logs
SET artifact_type = $2, status = $3, records_processed = $4, error_message = $5, completed_at = $6, processing_seconds = $7
WHERE id = $1
`, entry.ID, entry.ArtifactType, string(entry.Status), entry.RecordsProcessed, entry.ErrorMessage,
		entry.CompletedAt, entry.ProcessingSeconds)
	if err != nil {
		return fmt.Errorf("finish ingestion log: %w", err)
	}
	return requireAffected(res, domain.ErrLogNotFound, "finish ingestion log", entry.ID)
}

// ListByCase returns the newest entries first. A non-positive limit returns all.
func (r *IngestionLogRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]domain.IngestionLog, error) {
	query := `
SELECT ` + logColumns + `
FROM ingestion_logs
WHERE case_id = $1
ORDER BY id DESC`
	args := []any{caseID}
	if limit > 0 {
		query += "\nLIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ingestion logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IngestionLog, 0)
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingestion log: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingestion logs: %w", err)
	}
	return out, nil
}

func (r *IngestionLogRepository) Summarize(ctx context.Context, caseID string) (domain.LogSummary, error) {
	var s domain.LogSummary
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'processing'),
	COUNT(*) FILTER (WHERE status = 'success'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COALESCE(SUM(file_size) FILTER (WHERE status = 'success'), 0)
FROM ingestion_logs
WHERE case_id = $1
`, caseID).Scan(&s.Pending, &s.Processing, &s.Success, &s.Failed, &s.SuccessBytes)
	if err != nil {
		return domain.LogSummary{}, fmt.Errorf("summarize ingestion logs: %w", err)
	}
	return s, nil
}

func (r *IngestionLogRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM ingestion_logs
WHERE status IN ('success', 'failed') AND started_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished ingestion logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete finished ingestion logs rows affected: %w", err)
	}
	return n, nil
}

func scanLog(row rowScanner) (domain.IngestionLog, error) {
	var (
		entry       domain.IngestionLog
		status      string
		completedAt sql.NullTime
		seconds     sql.NullFloat64
	)
	err := row.Scan(
		&entry.ID, &entry.CaseID, &entry.Filename, &entry.StorageKey, &entry.FileSize, &entry.ArtifactType,
		&status, &entry.RecordsProcessed, &entry.ErrorMessage, &entry.StartedAt, &completedAt, &seconds,
	)
	if err != nil {
		return domain.IngestionLog{}, err
	}
	entry.Status = domain.LogStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		entry.CompletedAt = &t
	}
	if seconds.Valid {
		v := seconds.Float64
		entry.ProcessingSeconds = &v
	}
	return entry, nil
}
