package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryCatalogLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	id := uuid.New()

	job, err := c.Create(ctx, id, "video.process", "uploads/clip.mov")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}

	if err := c.MarkRunning(ctx, id); err != nil {
		t.Fatalf("MarkRunning() error: %v", err)
	}

	job, _ = c.Get(ctx, id)
	if job.Status != StatusRunning || job.Attempts != 1 || job.StartedAt == nil {
		t.Errorf("after MarkRunning: status=%q attempts=%d startedAt=%v", job.Status, job.Attempts, job.StartedAt)
	}

	result := json.RawMessage(`{"transcoded_video_key":"processed/x/clip_processed.mp4"}`)
	if err := c.Complete(ctx, id, result); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	job, _ = c.Get(ctx, id)
	if job.Status != StatusCompleted || job.CompletedAt == nil {
		t.Errorf("after Complete: status=%q", job.Status)
	}
	if string(job.Result) != string(result) {
		t.Error("result payload mismatch")
	}
}

func TestMemoryCatalogFail(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	id := uuid.New()

	_, _ = c.Create(ctx, id, "video.process", "uploads/clip.mov")
	_ = c.MarkRunning(ctx, id)

	if err := c.Fail(ctx, id, "ffmpeg exited 1"); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}

	job, _ := c.Get(ctx, id)
	if job.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage != "ffmpeg exited 1" {
		t.Errorf("ErrorMessage = %v", job.ErrorMessage)
	}
}

func TestMemoryCatalogCancel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	pending := uuid.New()
	running := uuid.New()
	_, _ = c.Create(ctx, pending, "video.process", "a")
	_, _ = c.Create(ctx, running, "video.process", "b")
	_ = c.MarkRunning(ctx, running)

	if err := c.Cancel(ctx, pending); err != nil {
		t.Errorf("Cancel(pending) error: %v", err)
	}
	if err := c.Cancel(ctx, running); err != ErrNotCancelable {
		t.Errorf("Cancel(running) error = %v, want ErrNotCancelable", err)
	}
	if err := c.Cancel(ctx, uuid.New()); err != ErrNotFound {
		t.Errorf("Cancel(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCatalogGetMissing(t *testing.T) {
	c := NewMemoryCatalog()
	if _, err := c.Get(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCatalogList(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	var failed uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		_, _ = c.Create(ctx, id, "video.process", "k")
		if i == 0 {
			failed = id
			_ = c.MarkRunning(ctx, id)
			_ = c.Fail(ctx, id, "boom")
		}
	}

	all, err := c.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("List() returned %d, want 5", len(all))
	}

	failedJobs, _ := c.List(ctx, ListParams{Status: StatusFailed})
	if len(failedJobs) != 1 || failedJobs[0].ID != failed {
		t.Errorf("List(failed) = %v", failedJobs)
	}

	limited, _ := c.List(ctx, ListParams{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("List(limit=2) returned %d", len(limited))
	}

	count, _ := c.Count(ctx, StatusPending)
	if count != 4 {
		t.Errorf("Count(pending) = %d, want 4", count)
	}
}

func TestMemoryCatalogReapStale(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	stale := uuid.New()
	fresh := uuid.New()
	_, _ = c.Create(ctx, stale, "video.process", "a")
	_, _ = c.Create(ctx, fresh, "video.process", "b")
	_ = c.MarkRunning(ctx, stale)
	_ = c.MarkRunning(ctx, fresh)

	// Backdate the stale job's start time.
	old := time.Now().Add(-3 * time.Hour)
	c.jobs[stale].StartedAt = &old

	reaped, err := c.ReapStale(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("ReapStale() error: %v", err)
	}
	if reaped != 1 {
		t.Errorf("reaped = %d, want 1", reaped)
	}

	job, _ := c.Get(ctx, stale)
	if job.Status != StatusFailed {
		t.Errorf("stale job status = %q, want failed", job.Status)
	}
	job, _ = c.Get(ctx, fresh)
	if job.Status != StatusRunning {
		t.Errorf("fresh job status = %q, want running", job.Status)
	}
}

func TestMemoryCatalogRetention(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	id := uuid.New()
	_, _ = c.Create(ctx, id, "video.process", "a")
	_ = c.MarkRunning(ctx, id)
	_ = c.Complete(ctx, id, nil)

	// Backdate completion beyond the retention window.
	old := time.Now().Add(-31 * 24 * time.Hour)
	c.jobs[id].CompletedAt = &old

	expired, err := c.ListFinishedBefore(ctx, time.Now().Add(-30*24*time.Hour), 100)
	if err != nil {
		t.Fatalf("ListFinishedBefore() error: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expired = %d, want 1", len(expired))
	}

	if err := c.Delete(ctx, expired[0].ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := c.Get(ctx, id); err != ErrNotFound {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}
