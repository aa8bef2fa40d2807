package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/metrics"
	"github.com/reelworks/reelworks/internal/tracing"
)

// Broker enqueues jobs onto the queue. Satisfied by the Redis Streams
// broker adapter in cmd/gateway.
type Broker interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

// Enqueuer creates catalog rows and pushes the matching queue jobs.
type Enqueuer struct {
	broker  Broker
	catalog catalog.Catalog
}

func NewEnqueuer(broker Broker, cat catalog.Catalog) *Enqueuer {
	return &Enqueuer{broker: broker, catalog: cat}
}

// Enqueue registers a new job in the catalog and hands it to the queue.
// The catalog row is created first so a crash between the two steps leaves
// a pending row that can still be canceled, never a queue job with no
// record.
func (e *Enqueuer) Enqueue(ctx context.Context, jobType, sourceKey string) (*catalog.Job, error) {
	if !IsKnownJobType(jobType) {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}

	jobID := uuid.New()
	ctx, span := tracing.StartJobEnqueueSpan(ctx, jobType)
	defer span.End()

	row, err := e.catalog.Create(ctx, jobID, jobType, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("create catalog row: %w", err)
	}

	payload := NewPayload(jobID, sourceKey)
	payload.Trace = tracing.InjectTraceContext(ctx)

	queueID, err := e.broker.Enqueue(ctx, jobType, payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
	logger.FromContext(ctx).Info("job enqueued",
		"job_id", jobID.String(),
		"job_type", jobType,
		"queue_id", queueID,
		"source_key", sourceKey)

	return row, nil
}
