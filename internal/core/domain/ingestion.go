package domain

import "time"

type LogStatus string

const (
	LogPending    LogStatus = "pending"
	LogProcessing LogStatus = "processing"
	LogSuccess    LogStatus = "success"
	LogFailed     LogStatus = "failed"
)

// IngestionLog is the audit row written for every file ingestion attempt.
type IngestionLog struct {
	ID                int64      `json:"id"`
	CaseID            string     `json:"case_id"`
	Filename          string     `json:"filename"`
	StorageKey        string     `json:"storage_key,omitempty"`
	FileSize          int64      `json:"file_size"`
	ArtifactType      string     `json:"artifact_type"`
	Status            LogStatus  `json:"status"`
	RecordsProcessed  int        `json:"records_processed"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ProcessingSeconds *float64   `json:"processing_seconds,omitempty"`
}

// Finish moves the entry to its terminal state and fills in the timing fields.
func (l *IngestionLog) Finish(status LogStatus, records int, errMessage string, at time.Time) {
	l.Status = status
	l.RecordsProcessed = records
	l.ErrorMessage = errMessage
	l.CompletedAt = &at
	elapsed := at.Sub(l.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	l.ProcessingSeconds = &elapsed
}

// LogSummary aggregates the ingestion history of one case.
type LogSummary struct {
	Pending      int   `json:"pending"`
	Processing   int   `json:"processing"`
	Success      int   `json:"success"`
	Failed       int   `json:"failed"`
	SuccessBytes int64 `json:"success_bytes"`
}

// Rollup derives the case counters from the full log history. Precedence:
// anything in flight wins, then total failure, then partial, then completed.
func (s LogSummary) Rollup() CaseRollup {
	out := CaseRollup{
		TotalArtifacts: s.Success,
		TotalBytes:     s.SuccessBytes,
	}
	switch {
	case s.Pending+s.Processing > 0:
		out.IngestionStatus = IngestionProcessing
	case s.Failed > 0 && s.Success == 0:
		out.IngestionStatus = IngestionFailed
	case s.Failed > 0:
		out.IngestionStatus = IngestionPartial
	case s.Success > 0:
		out.IngestionStatus = IngestionCompleted
	default:
		out.IngestionStatus = IngestionPending
	}
	return out
}

type IngestStats struct {
	TotalRecords    int    `json:"total_records"`
	InsertedRecords int    `json:"inserted_records"`
	Errors          int    `json:"errors"`
	ArtifactType    string `json:"artifact_type"`
	FileSize        int64  `json:"file_size"`
}

// IngestResult is what every ingestion entry point returns instead of an error.
type IngestResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Stats   IngestStats `json:"stats"`
	LogID   int64       `json:"log_id,omitempty"`
}

// IngestionEvent is published after an ingestion attempt has been recorded.
type IngestionEvent struct {
	CaseID     string      `json:"case_id"`
	LogID      int64       `json:"log_id"`
	Filename   string      `json:"filename"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Stats      IngestStats `json:"stats"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Validation is the outcome of classifying a file without ingesting it.
type Validation struct {
	Filename     string `json:"filename"`
	Valid        bool   `json:"valid"`
	ArtifactType string `json:"artifact_type"`
	Table        string `json:"table,omitempty"`
	Message      string `json:"message"`
}
