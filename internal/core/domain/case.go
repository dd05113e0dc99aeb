package domain

import (
	"encoding/json"
	"time"
)

type CaseStatus string

const (
	CaseActive   CaseStatus = "active"
	CaseInactive CaseStatus = "inactive"
	CaseClosed   CaseStatus = "closed"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseActive, CaseInactive, CaseClosed:
		return true
	default:
		return false
	}
}

type CasePriority string

const (
	PriorityLow      CasePriority = "low"
	PriorityMedium   CasePriority = "medium"
	PriorityHigh     CasePriority = "high"
	PriorityCritical CasePriority = "critical"
)

func (p CasePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// IngestionStatus is the case-level rollup of all ingestion attempts.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionProcessing IngestionStatus = "processing"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionPartial    IngestionStatus = "partial"
	IngestionFailed     IngestionStatus = "failed"
)

type Case struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CaseNumber      string          `json:"case_number,omitempty"`
	Description     string          `json:"description,omitempty"`
	Investigator    string          `json:"investigator"`
	EvidenceSource  string          `json:"evidence_source,omitempty"`
	Priority        CasePriority    `json:"priority"`
	CollectionDate  *time.Time      `json:"collection_date,omitempty"`
	Status          CaseStatus      `json:"status"`
	Namespace       string          `json:"namespace"`
	TotalArtifacts  int             `json:"total_artifacts"`
	TotalBytes      int64           `json:"total_bytes"`
	IngestionStatus IngestionStatus `json:"ingestion_status"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type NewCase struct {
	Name           string          `json:"name"`
	CaseNumber     string          `json:"case_number,omitempty"`
	Description    string          `json:"description,omitempty"`
	Investigator   string          `json:"investigator"`
	EvidenceSource string          `json:"evidence_source,omitempty"`
	Priority       CasePriority    `json:"priority,omitempty"`
	CollectionDate *time.Time      `json:"collection_date,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type CaseFilter struct {
	Status CaseStatus
	Search string
	Limit  int
	Offset int
}

// CaseRollup holds the counters recomputed after every ingestion.
type CaseRollup struct {
	TotalArtifacts  int             `json:"total_artifacts"`
	TotalBytes      int64           `json:"total_bytes"`
	IngestionStatus IngestionStatus `json:"ingestion_status"`
}
