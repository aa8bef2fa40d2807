package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCatalog is an in-memory Catalog for tests.
type MemoryCatalog struct {
	jobs map[uuid.UUID]*Job
	mu   sync.RWMutex
}

var _ Catalog = (*MemoryCatalog)(nil)

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{jobs: make(map[uuid.UUID]*Job)}
}

func (c *MemoryCatalog) Create(ctx context.Context, id uuid.UUID, jobType, sourceKey string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	job := &Job{
		ID:        id,
		JobType:   jobType,
		SourceKey: sourceKey,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	c.jobs[id] = job

	copied := *job
	return &copied, nil
}

func (c *MemoryCatalog) MarkRunning(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return ErrNotFound
	}

	now := time.Now()
	job.Status = StatusRunning
	job.Attempts++
	job.StartedAt = &now
	return nil
}

func (c *MemoryCatalog) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.Result = result
	job.ErrorMessage = nil
	job.CompletedAt = &now
	return nil
}

func (c *MemoryCatalog) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	job.Status = StatusFailed
	job.ErrorMessage = &errMsg
	job.CompletedAt = &now
	return nil
}

func (c *MemoryCatalog) Cancel(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusPending {
		return ErrNotCancelable
	}

	now := time.Now()
	job.Status = StatusCanceled
	job.CompletedAt = &now
	return nil
}

func (c *MemoryCatalog) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *job
	return &copied, nil
}

func (c *MemoryCatalog) List(ctx context.Context, params ListParams) ([]Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var jobs []Job
	for _, job := range c.jobs {
		if params.Status != "" && job.Status != params.Status {
			continue
		}
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if params.Offset >= len(jobs) {
		return nil, nil
	}
	jobs = jobs[params.Offset:]
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (c *MemoryCatalog) Count(ctx context.Context, status Status) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	for _, job := range c.jobs {
		if status == "" || job.Status == status {
			count++
		}
	}
	return count, nil
}

func (c *MemoryCatalog) ReapStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var reaped int64
	for _, job := range c.jobs {
		if job.Status == StatusRunning && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			now := time.Now()
			msg := "worker lost"
			job.Status = StatusFailed
			job.ErrorMessage = &msg
			job.CompletedAt = &now
			reaped++
		}
	}
	return reaped, nil
}

func (c *MemoryCatalog) ListFinishedBefore(ctx context.Context, t time.Time, limit int) ([]Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var jobs []Job
	for _, job := range c.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(t) {
			jobs = append(jobs, *job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CompletedAt.Before(*jobs[j].CompletedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (c *MemoryCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(c.jobs, id)
	return nil
}
