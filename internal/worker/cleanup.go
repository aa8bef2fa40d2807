package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/storage"
)

const cleanupBatchSize = 100

// CleanupStats summarizes one maintenance sweep.
type CleanupStats struct {
	StaleReaped    int64
	JobsDeleted    int
	ObjectsRemoved int
}

// RunCleanup performs a single maintenance sweep: it fails running jobs
// whose worker disappeared, then deletes terminal jobs past the retention
// window along with their output objects. Safe to run concurrently with
// workers; it only touches rows the workers are done with.
func RunCleanup(ctx context.Context, cat catalog.Catalog, store storage.Storage, staleAge, retention time.Duration) (*CleanupStats, error) {
	log := logger.FromContext(ctx)
	stats := &CleanupStats{}

	reaped, err := cat.ReapStale(ctx, staleAge)
	if err != nil {
		return stats, fmt.Errorf("reap stale jobs: %w", err)
	}
	stats.StaleReaped = reaped
	if reaped > 0 {
		log.Warn("reaped stale jobs", "count", reaped, "older_than", staleAge.String())
	}

	cutoff := time.Now().Add(-retention)
	for {
		jobs, err := cat.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			return stats, fmt.Errorf("list expired jobs: %w", err)
		}
		if len(jobs) == 0 {
			break
		}

		deletedBefore := stats.JobsDeleted
		for _, j := range jobs {
			removed, err := store.RemovePrefix(ctx, outputPrefixFor(j.ID.String())+"/")
			if err != nil {
				log.Error("failed to remove job outputs", "job_id", j.ID.String(), "error", err)
				continue
			}
			if err := cat.Delete(ctx, j.ID); err != nil {
				log.Error("failed to delete job row", "job_id", j.ID.String(), "error", err)
				continue
			}
			stats.JobsDeleted++
			stats.ObjectsRemoved += removed
		}

		// No progress means every delete in the batch failed; bail out
		// rather than spin on the same rows.
		if len(jobs) < cleanupBatchSize || stats.JobsDeleted == deletedBefore {
			break
		}
	}

	log.Info("cleanup sweep finished",
		"stale_reaped", stats.StaleReaped,
		"jobs_deleted", stats.JobsDeleted,
		"objects_removed", stats.ObjectsRemoved)
	return stats, nil
}
