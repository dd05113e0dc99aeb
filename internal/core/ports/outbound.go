package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// CaseRepository persists case metadata and rollup counters.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, filter domain.CaseFilter) ([]domain.Case, error)
	UpdateStatus(ctx context.Context, id string, status domain.CaseStatus) error
	UpdateRollup(ctx context.Context, id string, rollup domain.CaseRollup) error
	Delete(ctx context.Context, id string) error
}

// IngestionLogRepository persists the audit trail of ingestion attempts.
type IngestionLogRepository interface {
	Create(ctx context.Context, entry *domain.IngestionLog) error
	GetByID(ctx context.Context, id int64) (*domain.IngestionLog, error)
	MarkProcessing(ctx context.Context, id int64, startedAt time.Time) error
	Finish(ctx context.Context, entry *domain.IngestionLog) error
	ListByCase(ctx context.Context, caseID string, limit int) ([]domain.IngestionLog, error)
	Summarize(ctx context.Context, caseID string) (domain.LogSummary, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NamespaceManager owns the per-case schemas and reads their tables.
type NamespaceManager interface {
	CreateNamespace(ctx context.Context, namespace string) error
	DropNamespace(ctx context.Context, namespace string) error
	ListTables(ctx context.Context, namespace string) ([]domain.TableInfo, error)
	ReadTable(ctx context.Context, namespace, table string, offset, limit int) (*domain.Rows, int64, error)
}

// ArtifactStore hands out a writer bound to one namespace. The writer holds
// the namespace lock until it is closed.
type ArtifactStore interface {
	Open(ctx context.Context, namespace string) (ArtifactWriter, error)
}

// ArtifactWriter provisions tables on first use and inserts records.
type ArtifactWriter interface {
	Insert(ctx context.Context, table string, rec *domain.Record) error
	Close() error
}

// QueryRunner executes guarded read-only SQL inside a namespace.
type QueryRunner interface {
	RunReadOnly(ctx context.Context, namespace, query string, maxRows int) (*domain.Rows, error)
}

// ObjectStorage stores the original artifact files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces finished ingestion attempts.
type EventPublisher interface {
	PublishIngestion(ctx context.Context, event domain.IngestionEvent) error
}

// EventSubscriber consumes ingestion announcements.
type EventSubscriber interface {
	SubscribeIngestion(ctx context.Context, handler func(context.Context, domain.IngestionEvent) error) error
}

// IngestObserver records ingestion metrics.
type IngestObserver interface {
	ObserveIngestion(artifactType string, success bool, stats domain.IngestStats, elapsed time.Duration)
}

// WorkbookWriter renders a case export.
type WorkbookWriter interface {
	WriteCase(w io.Writer, export *domain.CaseExport) error
}
