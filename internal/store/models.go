package store

import (
	"encoding/json"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
)

// Job statuses. Transitions are strictly forward:
// pending -> processing -> completed | failed.
// A row never returns to pending once claimed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Domain entity statuses shared by use cases and documents.
const (
	EntityPending   = "pending"
	EntityCompleted = "completed"
	EntityFailed    = "failed"
)

// Job is one schedulable unit of generation work.
type Job struct {
	ID          string          `json:"id"`
	Type        payload.JobType `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	WorkspaceID string          `json:"workspace_id"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// UseCase is the slice of the use-case entity the chaining rules read.
type UseCase struct {
	ID          string          `json:"id"`
	FolderID    string          `json:"folder_id"`
	WorkspaceID string          `json:"workspace_id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Document is the slice of the document entity failure propagation writes.
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
