package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reelworks/reelworks/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS processing_jobs (
    id            UUID PRIMARY KEY,
    job_type      TEXT NOT NULL,
    source_key    TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    attempts      INT NOT NULL DEFAULT 0,
    error_message TEXT,
    result        JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs (status, created_at);
`

var _ Catalog = (*PostgresCatalog)(nil)

type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// Migrate creates the jobs table if it does not exist yet.
func (c *PostgresCatalog) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Create(ctx context.Context, id uuid.UUID, jobType, sourceKey string) (*Job, error) {
	row := c.pool.QueryRow(ctx, `
		INSERT INTO processing_jobs (id, job_type, source_key, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, job_type, source_key, status, attempts, error_message, result, created_at, started_at, completed_at`,
		id, jobType, sourceKey)

	return scanJob(row)
}

func (c *PostgresCatalog) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = 'running', attempts = attempts + 1, started_at = now()
		WHERE id = $1 AND status IN ('pending', 'running')`,
		id)
	if err != nil {
		return fmt.Errorf("mark running %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresCatalog) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = 'completed', result = $2, error_message = NULL, completed_at = now()
		WHERE id = $1`,
		id, result)
	if err != nil {
		return fmt.Errorf("complete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresCatalog) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = 'failed', error_message = $2, completed_at = now()
		WHERE id = $1`,
		id, errMsg)
	if err != nil {
		return fmt.Errorf("fail %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresCatalog) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = 'canceled', completed_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from non-pending for the API error surface.
		if _, err := c.Get(ctx, id); err != nil {
			return err
		}
		return ErrNotCancelable
	}
	return nil
}

func (c *PostgresCatalog) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, job_type, source_key, status, attempts, error_message, result, created_at, started_at, completed_at
		FROM processing_jobs WHERE id = $1`,
		id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (c *PostgresCatalog) List(ctx context.Context, params ListParams) ([]Job, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		rows pgx.Rows
		err  error
	)
	if params.Status != "" {
		rows, err = c.pool.Query(ctx, `
			SELECT id, job_type, source_key, status, attempts, error_message, result, created_at, started_at, completed_at
			FROM processing_jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
			params.Status, limit, params.Offset)
	} else {
		rows, err = c.pool.Query(ctx, `
			SELECT id, job_type, source_key, status, attempts, error_message, result, created_at, started_at, completed_at
			FROM processing_jobs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, params.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (c *PostgresCatalog) Count(ctx context.Context, status Status) (int64, error) {
	var count int64
	var err error
	if status != "" {
		err = c.pool.QueryRow(ctx, `SELECT count(*) FROM processing_jobs WHERE status = $1`, status).Scan(&count)
	} else {
		err = c.pool.QueryRow(ctx, `SELECT count(*) FROM processing_jobs`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

func (c *PostgresCatalog) ReapStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	log := logger.FromContext(ctx)

	tag, err := c.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = 'failed', error_message = 'worker lost', completed_at = now()
		WHERE status = 'running' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}

	if tag.RowsAffected() > 0 {
		log.Warn("reaped stale running jobs", "count", tag.RowsAffected())
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresCatalog) ListFinishedBefore(ctx context.Context, t time.Time, limit int) ([]Job, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, job_type, source_key, status, attempts, error_message, result, created_at, started_at, completed_at
		FROM processing_jobs
		WHERE status IN ('completed', 'failed', 'canceled') AND completed_at < $1
		ORDER BY completed_at
		LIMIT $2`,
		t, limit)
	if err != nil {
		return nil, fmt.Errorf("list finished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (c *PostgresCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM processing_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID,
		&job.JobType,
		&job.SourceKey,
		&job.Status,
		&job.Attempts,
		&job.ErrorMessage,
		&job.Result,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
