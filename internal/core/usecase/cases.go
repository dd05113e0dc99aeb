package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

const (
	defaultCaseListLimit = 50
	maxCaseListLimit     = 500
)

type CaseUseCase struct {
	cases      ports.CaseRepository
	logs       ports.IngestionLogRepository
	namespaces ports.NamespaceManager
	storage    ports.ObjectStorage
	now        func() time.Time
}

func NewCaseUseCase(
	cases ports.CaseRepository,
	logs ports.IngestionLogRepository,
	namespaces ports.NamespaceManager,
	storage ports.ObjectStorage,
) *CaseUseCase {
	return &CaseUseCase{
		cases:      cases,
		logs:       logs,
		namespaces: namespaces,
		storage:    storage,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a case and provisions its namespace. The case row is
// removed again when the namespace cannot be created.
func (uc *CaseUseCase) Create(ctx context.Context, in domain.NewCase) (*domain.Case, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create case", errors.New("name is required"))
	}
	investigator := strings.TrimSpace(in.Investigator)
	if investigator == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create case", errors.New("investigator is required"))
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create case", fmt.Errorf("unknown priority %q", priority))
	}

	id := uuid.NewString()
	namespace, err := domain.NamespaceFor(id)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	c := &domain.Case{
		ID:              id,
		Name:            name,
		CaseNumber:      strings.TrimSpace(in.CaseNumber),
		Description:     in.Description,
		Investigator:    investigator,
		EvidenceSource:  in.EvidenceSource,
		Priority:        priority,
		CollectionDate:  in.CollectionDate,
		Status:          domain.CaseActive,
		Namespace:       namespace,
		IngestionStatus: domain.IngestionPending,
		Metadata:        in.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.cases.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case metadata: %w", err)
	}
	if err := uc.namespaces.CreateNamespace(ctx, namespace); err != nil {
		if delErr := uc.cases.Delete(ctx, id); delErr != nil {
			return nil, fmt.Errorf("create namespace: %w; remove case row: %v", err, delErr)
		}
		return nil, fmt.Errorf("create namespace: %w", err)
	}

	slog.Info("case_created", "case_id", id, "namespace", namespace, "name", name)
	return c, nil
}

func (uc *CaseUseCase) Get(ctx context.Context, id string) (*domain.Case, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get case", errors.New("case id is required"))
	}
	c, err := uc.cases.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (uc *CaseUseCase) List(ctx context.Context, filter domain.CaseFilter) ([]domain.Case, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list cases", fmt.Errorf("unknown status %q", filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultCaseListLimit
	}
	if filter.Limit > maxCaseListLimit {
		filter.Limit = maxCaseListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	cases, err := uc.cases.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

func (uc *CaseUseCase) SetStatus(ctx context.Context, id string, status domain.CaseStatus) (*domain.Case, error) {
	if !status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "set case status", fmt.Errorf("unknown status %q", status))
	}
	if err := uc.cases.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set case status: %w", err)
	}
	return uc.Get(ctx, id)
}

// Delete drops the namespace with every ingested table, then the case row
// and its audit trail. Retained original files are removed last.
func (uc *CaseUseCase) Delete(ctx context.Context, id string) error {
	c, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	logs, err := uc.logs.ListByCase(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("list ingestion logs: %w", err)
	}
	if err := uc.namespaces.DropNamespace(ctx, c.Namespace); err != nil {
		return fmt.Errorf("drop namespace: %w", err)
	}
	if err := uc.cases.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete case metadata: %w", err)
	}

	if uc.storage != nil {
		for _, entry := range logs {
			if entry.StorageKey == "" {
				continue
			}
			if err := uc.storage.Delete(ctx, entry.StorageKey); err != nil {
				slog.Warn("artifact_original_delete_failed", "case_id", id, "key", entry.StorageKey, "error", err)
			}
		}
	}

	slog.Info("case_deleted", "case_id", id, "namespace", c.Namespace)
	return nil
}

func (uc *CaseUseCase) IngestionLogs(ctx context.Context, id string, limit int) ([]domain.IngestionLog, error) {
	if _, err := uc.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := uc.logs.ListByCase(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestion logs: %w", err)
	}
	return logs, nil
}

// IngestionLog returns a single audit entry.
func (uc *CaseUseCase) IngestionLog(ctx context.Context, logID int64) (*domain.IngestionLog, error) {
	if logID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get ingestion log", fmt.Errorf("invalid log id %d", logID))
	}
	entry, err := uc.logs.GetByID(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("get ingestion log: %w", err)
	}
	return entry, nil
}
