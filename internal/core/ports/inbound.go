package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// Ingestor is the inbound contract for artifact ingestion. Ingest reports
// every failure through the result and never returns an error.
type Ingestor interface {
	Ingest(ctx context.Context, caseID, filename string, body []byte) domain.IngestResult
	Retry(ctx context.Context, logID int64) (domain.IngestResult, error)
	Validate(filename string, body []byte) domain.Validation
	PruneLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CaseService is the inbound contract for case lifecycle management.
type CaseService interface {
	Create(ctx context.Context, in domain.NewCase) (*domain.Case, error)
	Get(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, filter domain.CaseFilter) ([]domain.Case, error)
	SetStatus(ctx context.Context, id string, status domain.CaseStatus) (*domain.Case, error)
	Delete(ctx context.Context, id string) error
	IngestionLogs(ctx context.Context, id string, limit int) ([]domain.IngestionLog, error)
	IngestionLog(ctx context.Context, logID int64) (*domain.IngestionLog, error)
}

// CaseExplorer is the inbound read model over ingested tables.
type CaseExplorer interface {
	Tables(ctx context.Context, caseID string) ([]domain.TableInfo, error)
	Table(ctx context.Context, caseID, table string, page, perPage int) (*domain.TablePage, error)
	Query(ctx context.Context, caseID, query string) (*domain.Rows, error)
	Statistics(ctx context.Context, caseID string) (*domain.CaseStatistics, error)
	Export(ctx context.Context, caseID string, w io.Writer) error
}
