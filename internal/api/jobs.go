// Package api exposes the gateway's JSON API for submitting and tracking
// video processing jobs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelworks/reelworks/internal/apperror"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/worker"
)

// Enqueuer hides the queue wiring from handlers.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType, sourceKey string) (*catalog.Job, error)
}

// Presigner is the slice of the storage layer the API needs.
type Presigner interface {
	Exists(ctx context.Context, key string) (bool, error)
	GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error)
}

type JobConfig struct {
	Catalog  catalog.Catalog
	Enqueuer Enqueuer
	Storage  Presigner
}

type SubmitJobRequest struct {
	JobType   string `json:"job_type"`
	SourceKey string `json:"source_key"`
}

type JobResponse struct {
	ID           string          `json:"id"`
	JobType      string          `json:"job_type"`
	SourceKey    string          `json:"source_key"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    string          `json:"created_at"`
	StartedAt    *string         `json:"started_at,omitempty"`
	CompletedAt  *string         `json:"completed_at,omitempty"`
}

type JobListResponse struct {
	Jobs    []JobResponse `json:"jobs"`
	Total   int64         `json:"total"`
	HasMore bool          `json:"has_more"`
}

func toJobResponse(j *catalog.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID.String(),
		JobType:      j.JobType,
		SourceKey:    j.SourceKey,
		Status:       string(j.Status),
		Attempts:     j.Attempts,
		ErrorMessage: j.ErrorMessage,
		Result:       j.Result,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if j.CompletedAt != nil {
		c := j.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &c
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func SubmitJobHandler(cfg *JobConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req SubmitJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_body", "Request body must be valid JSON", http.StatusBadRequest))
			return
		}

		if req.JobType == "" {
			req.JobType = worker.JobTypeProcess
		}
		if !worker.IsKnownJobType(req.JobType) {
			apperror.WriteJSON(w, r, apperror.ErrUnknownJobType)
			return
		}
		if strings.TrimSpace(req.SourceKey) == "" {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "missing_source_key", "source_key is required", http.StatusBadRequest))
			return
		}

		if exists, err := cfg.Storage.Exists(r.Context(), req.SourceKey); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrServiceUnavailable))
			return
		} else if !exists {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "source_not_found", "No object exists at source_key", http.StatusUnprocessableEntity))
			return
		}

		job, err := cfg.Enqueuer.Enqueue(r.Context(), req.JobType, req.SourceKey)
		if err != nil {
			log.Error("failed to enqueue job", "job_type", req.JobType, "error", err)
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		writeJSON(w, http.StatusAccepted, toJobResponse(job))
	}
}

func ListJobsHandler(cfg *JobConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		offset := 0

		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			l, err := strconv.Atoi(limitStr)
			if err != nil || l < 1 || l > 100 {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_limit", "limit must be between 1 and 100", http.StatusBadRequest))
				return
			}
			limit = l
		}
		if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
			o, err := strconv.Atoi(offsetStr)
			if err != nil || o < 0 {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_offset", "offset must be non-negative", http.StatusBadRequest))
				return
			}
			offset = o
		}

		status := catalog.Status(r.URL.Query().Get("status"))

		jobs, err := cfg.Catalog.List(r.Context(), catalog.ListParams{
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		total, err := cfg.Catalog.Count(r.Context(), status)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		responses := make([]JobResponse, len(jobs))
		for i := range jobs {
			responses[i] = toJobResponse(&jobs[i])
		}

		writeJSON(w, http.StatusOK, JobListResponse{
			Jobs:    responses,
			Total:   total,
			HasMore: int64(offset)+int64(len(jobs)) < total,
		})
	}
}

func GetJobHandler(cfg *JobConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_job_id", "Invalid job ID format", http.StatusBadRequest))
			return
		}

		job, err := cfg.Catalog.Get(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				apperror.WriteJSON(w, r, apperror.ErrNotFound)
				return
			}
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		writeJSON(w, http.StatusOK, toJobResponse(job))
	}
}

func CancelJobHandler(cfg *JobConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		jobID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_job_id", "Invalid job ID format", http.StatusBadRequest))
			return
		}

		if err := cfg.Catalog.Cancel(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				apperror.WriteJSON(w, r, apperror.ErrNotFound)
			case errors.Is(err, catalog.ErrNotCancelable):
				apperror.WriteJSON(w, r, apperror.ErrJobNotCancelable)
			default:
				log.Error("failed to cancel job", "job_id", jobID.String(), "error", err)
				apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			}
			return
		}

		log.Info("job canceled", "job_id", jobID.String())
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     jobID.String(),
			"status": string(catalog.StatusCanceled),
		})
	}
}

const (
	defaultPresignExpiry = 3600
	maxPresignExpiry     = 7 * 24 * 3600 // S3 presign ceiling
)

// PresignOutputHandler issues a time-limited download URL for one of a
// job's output objects. The key must live under the job's output prefix,
// so a job ID never grants access to another job's files.
func PresignOutputHandler(cfg *JobConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_job_id", "Invalid job ID format", http.StatusBadRequest))
			return
		}

		if _, err := cfg.Catalog.Get(r.Context(), jobID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				apperror.WriteJSON(w, r, apperror.ErrNotFound)
				return
			}
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		key := r.URL.Query().Get("key")
		prefix := "processed/" + jobID.String() + "/"
		if key == "" || !strings.HasPrefix(key, prefix) || strings.Contains(key, "..") {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "invalid_key", "key must belong to this job's outputs", http.StatusBadRequest))
			return
		}

		expiry := defaultPresignExpiry
		if expiryStr := r.URL.Query().Get("expiry"); expiryStr != "" {
			e, err := strconv.Atoi(expiryStr)
			if err != nil || e < 1 || e > maxPresignExpiry {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_expiry", "expiry must be between 1 and 604800 seconds", http.StatusBadRequest))
				return
			}
			expiry = e
		}

		exists, err := cfg.Storage.Exists(r.Context(), key)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrServiceUnavailable))
			return
		}
		if !exists {
			apperror.WriteJSON(w, r, apperror.ErrNotFound)
			return
		}

		url, err := cfg.Storage.GetPresignedURL(r.Context(), key, expiry)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"url":        url,
			"expires_in": expiry,
		})
	}
}
