package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

type IngestUseCase struct {
	cases    ports.CaseRepository
	logs     ports.IngestionLogRepository
	store    ports.ArtifactStore
	storage  ports.ObjectStorage
	events   ports.EventPublisher
	observer ports.IngestObserver
	registry *artifact.Registry
	now      func() time.Time
}

func NewIngestUseCase(
	cases ports.CaseRepository,
	logs ports.IngestionLogRepository,
	store ports.ArtifactStore,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	observer ports.IngestObserver,
	registry *artifact.Registry,
) *IngestUseCase {
	return &IngestUseCase{
		cases:    cases,
		logs:     logs,
		store:    store,
		storage:  storage,
		events:   events,
		observer: observer,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest drives one artifact file through classification, normalization and
// storage. Every outcome, including infrastructure failures, is reported in
// the returned result.
func (uc *IngestUseCase) Ingest(ctx context.Context, caseID, filename string, body []byte) domain.IngestResult {
	stats := domain.IngestStats{
		ArtifactType: string(artifact.TypeUnknown),
		FileSize:     int64(len(body)),
	}

	c, err := uc.cases.GetByID(ctx, caseID)
	if err != nil {
		msg := "case not found"
		if !domain.IsKind(err, domain.ErrCaseNotFound) {
			msg = fmt.Sprintf("case lookup failed: %v", err)
		}
		slog.Warn("ingest_file_rejected", "case_id", caseID, "filename", filename, "error", err)
		return domain.IngestResult{Success: false, Message: msg, Stats: stats}
	}

	// Unsupported types leave no trace in the case. Invalid JSON falls
	// through and is audited by process.
	if t, supported := uc.classify(filename, body); !supported {
		stats.ArtifactType = string(t)
		msg := fmt.Sprintf("unsupported artifact type: %s", t)
		if uc.observer != nil {
			uc.observer.ObserveIngestion(stats.ArtifactType, false, stats, 0)
		}
		slog.Warn("ingest_file_rejected", "case_id", c.ID, "filename", filename, "artifact_type", stats.ArtifactType, "reason", msg)
		return domain.IngestResult{Success: false, Message: msg, Stats: stats}
	}

	entry := &domain.IngestionLog{
		CaseID:       c.ID,
		Filename:     filename,
		StorageKey:   uc.keepOriginal(ctx, c.ID, filename, body),
		FileSize:     stats.FileSize,
		ArtifactType: stats.ArtifactType,
		Status:       domain.LogProcessing,
		StartedAt:    uc.now(),
	}
	if err := uc.logs.Create(ctx, entry); err != nil {
		slog.Error("ingestion_log_create_failed", "case_id", c.ID, "filename", filename, "error", err)
		entry.ID = 0
	} else {
		uc.refreshRollup(ctx, c.ID)
	}

	return uc.execute(ctx, c, entry, body)
}

// Retry re-runs a failed ingestion from the retained original file and
// updates the same audit entry.
func (uc *IngestUseCase) Retry(ctx context.Context, logID int64) (domain.IngestResult, error) {
	entry, err := uc.logs.GetByID(ctx, logID)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("get ingestion log: %w", err)
	}
	if entry.Status != domain.LogFailed {
		return domain.IngestResult{}, domain.WrapError(domain.ErrConflict, "retry ingestion", fmt.Errorf("log %d is %s, only failed ingestions can be retried", logID, entry.Status))
	}
	if entry.StorageKey == "" {
		return domain.IngestResult{}, domain.WrapError(domain.ErrInvalidInput, "retry ingestion", errors.New("original file was not retained"))
	}

	c, err := uc.cases.GetByID(ctx, entry.CaseID)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("get case: %w", err)
	}

	body, err := uc.readOriginal(ctx, entry.StorageKey)
	if err != nil {
		return domain.IngestResult{}, err
	}

	entry.Status = domain.LogProcessing
	entry.ErrorMessage = ""
	entry.CompletedAt = nil
	entry.ProcessingSeconds = nil
	entry.StartedAt = uc.now()
	if err := uc.logs.MarkProcessing(ctx, entry.ID, entry.StartedAt); err != nil {
		return domain.IngestResult{}, fmt.Errorf("set status=processing: %w", err)
	}
	uc.refreshRollup(ctx, c.ID)

	return uc.execute(ctx, c, entry, body), nil
}

// Validate classifies a file without touching storage.
func (uc *IngestUseCase) Validate(filename string, body []byte) domain.Validation {
	out := domain.Validation{Filename: filename, ArtifactType: string(artifact.TypeUnknown)}

	data, err := artifact.Decode(body)
	if err != nil {
		out.Message = fmt.Sprintf("invalid JSON format: %v", err)
		return out
	}
	t := artifact.Classify(filename, data)
	out.ArtifactType = string(t)
	if t == artifact.TypeUnknown {
		out.Message = "unable to determine artifact type from file name or content"
		return out
	}
	table, ok := uc.registry.Table(t)
	if !ok {
		out.Message = fmt.Sprintf("unsupported artifact type: %s", t)
		return out
	}
	out.Valid = true
	out.Table = table
	out.Message = fmt.Sprintf("valid %s artifact", t)
	return out
}

// PruneLogs deletes finished audit entries that started before now-olderThan.
func (uc *IngestUseCase) PruneLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "prune ingestion logs", errors.New("retention must be positive"))
	}
	n, err := uc.logs.DeleteFinishedBefore(ctx, uc.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("delete finished ingestion logs: %w", err)
	}
	slog.Info("ingestion_logs_pruned", "deleted", n, "older_than", olderThan.String())
	return n, nil
}

// classify reports whether a decodable file maps to a stored artifact type.
// Undecodable files count as supported so their failure gets audited.
func (uc *IngestUseCase) classify(filename string, body []byte) (artifact.Type, bool) {
	data, err := artifact.Decode(body)
	if err != nil {
		return artifact.TypeUnknown, true
	}
	t := artifact.Classify(filename, data)
	_, ok := uc.registry.Resolve(t)
	return t, ok
}

func (uc *IngestUseCase) execute(ctx context.Context, c *domain.Case, entry *domain.IngestionLog, body []byte) domain.IngestResult {
	success, message, stats := uc.process(ctx, c, entry.Filename, body)

	status := domain.LogSuccess
	errMessage := ""
	if !success {
		status = domain.LogFailed
		errMessage = message
	}
	entry.ArtifactType = stats.ArtifactType
	entry.Finish(status, stats.InsertedRecords, errMessage, uc.now())

	if entry.ID != 0 {
		if err := uc.logs.Finish(ctx, entry); err != nil {
			slog.Error("ingestion_log_finish_failed", "log_id", entry.ID, "case_id", c.ID, "error", err)
		}
		uc.refreshRollup(ctx, c.ID)
	}

	elapsed := time.Duration(*entry.ProcessingSeconds * float64(time.Second))
	if uc.observer != nil {
		uc.observer.ObserveIngestion(stats.ArtifactType, success, stats, elapsed)
	}

	result := domain.IngestResult{Success: success, Message: message, Stats: stats, LogID: entry.ID}
	uc.publish(ctx, c.ID, entry, result)

	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "ingest_file_completed",
		"case_id", c.ID,
		"namespace", c.Namespace,
		"filename", entry.Filename,
		"log_id", entry.ID,
		"artifact_type", stats.ArtifactType,
		"success", success,
		"total_records", stats.TotalRecords,
		"inserted_records", stats.InsertedRecords,
		"errors", stats.Errors,
		"duration_ms", elapsed.Milliseconds(),
		"message", message,
	)
	return result
}

func (uc *IngestUseCase) refreshRollup(ctx context.Context, caseID string) {
	summary, err := uc.logs.Summarize(ctx, caseID)
	if err != nil {
		slog.Error("case_rollup_failed", "case_id", caseID, "error", err)
		return
	}
	if err := uc.cases.UpdateRollup(ctx, caseID, summary.Rollup()); err != nil {
		slog.Error("case_rollup_failed", "case_id", caseID, "error", err)
	}
}

func (uc *IngestUseCase) publish(ctx context.Context, caseID string, entry *domain.IngestionLog, result domain.IngestResult) {
	if uc.events == nil {
		return
	}
	event := domain.IngestionEvent{
		CaseID:     caseID,
		LogID:      entry.ID,
		Filename:   entry.Filename,
		Success:    result.Success,
		Message:    result.Message,
		Stats:      result.Stats,
		OccurredAt: uc.now(),
	}
	if err := uc.events.PublishIngestion(ctx, event); err != nil {
		slog.Warn("ingestion_event_publish_failed", "case_id", caseID, "log_id", entry.ID, "error", err)
	}
}

// keepOriginal stores the uploaded bytes for later retries. A storage
// failure only disables retry for this file.
func (uc *IngestUseCase) keepOriginal(ctx context.Context, caseID, filename string, body []byte) string {
	if uc.storage == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s_%s", caseID, uuid.NewString(), sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, key, bytes.NewReader(body)); err != nil {
		slog.Warn("artifact_original_save_failed", "case_id", caseID, "filename", filename, "error", err)
		return ""
	}
	return key
}

func (uc *IngestUseCase) readOriginal(ctx context.Context, key string) ([]byte, error) {
	if uc.storage == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open original file", errors.New("object storage disabled"))
	}
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open original file: %w", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read original file: %w", err)
	}
	return body, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "artifact.json"
	}
	return base
}
