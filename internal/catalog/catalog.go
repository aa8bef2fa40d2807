// Package catalog tracks the lifecycle of processing jobs so the gateway
// and CLI can answer status queries after the queue has moved on.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("catalog: job not found")
	ErrNotCancelable = errors.New("catalog: only pending jobs can be canceled")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether a job in this status will never run again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	SourceKey    string          `json:"source_key"`
	Status       Status          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

type ListParams struct {
	Status Status // empty means all
	Limit  int
	Offset int
}

type Catalog interface {
	Create(ctx context.Context, id uuid.UUID, jobType, sourceKey string) (*Job, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	List(ctx context.Context, params ListParams) ([]Job, error)
	Count(ctx context.Context, status Status) (int64, error)

	// ReapStale fails running jobs whose worker died without reporting back.
	ReapStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// ListFinishedBefore returns terminal jobs older than t, for retention cleanup.
	ListFinishedBefore(ctx context.Context, t time.Time, limit int) ([]Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
