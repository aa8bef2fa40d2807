package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/storage"
	"github.com/reelworks/reelworks/internal/worker"
)

// stubEnqueuer creates catalog rows without a real queue behind it.
type stubEnqueuer struct {
	catalog catalog.Catalog
	err     error
}

func (e *stubEnqueuer) Enqueue(ctx context.Context, jobType, sourceKey string) (*catalog.Job, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.catalog.Create(ctx, uuid.New(), jobType, sourceKey)
}

func newTestRouter(t *testing.T) (http.Handler, *catalog.MemoryCatalog, *storage.MemoryStorage) {
	t.Helper()

	cat := catalog.NewMemoryCatalog()
	store := storage.NewMemoryStorage()
	router := NewRouter(&Config{
		Jobs: &JobConfig{
			Catalog:  cat,
			Enqueuer: &stubEnqueuer{catalog: cat},
			Storage:  store,
		},
	})
	return router, cat, store
}

func seedObject(t *testing.T, store *storage.MemoryStorage, key string) {
	t.Helper()
	err := store.Upload(context.Background(), key, bytes.NewReader([]byte("data")), "application/octet-stream", 4)
	require.NoError(t, err)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	router, cat, store := newTestRouter(t)
	seedObject(t, store, "uploads/clip.mp4")

	rec := doJSON(t, router, "POST", "/v1/jobs", SubmitJobRequest{SourceKey: "uploads/clip.mp4"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, worker.JobTypeProcess, resp.JobType) // defaulted
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "uploads/clip.mp4", resp.SourceKey)

	jobID, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	row, err := cat.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, row.Status)
}

func TestSubmitJobValidation(t *testing.T) {
	router, _, store := newTestRouter(t)
	seedObject(t, store, "uploads/clip.mp4")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown job type",
			body:       `{"job_type":"video.explode","source_key":"uploads/clip.mp4"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "unknown_job_type",
		},
		{
			name:       "missing source key",
			body:       `{"job_type":"video.process"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_source_key",
		},
		{
			name:       "source object does not exist",
			body:       `{"source_key":"uploads/nothing.mp4"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "source_not_found",
		},
		{
			name:       "malformed json",
			body:       `{"source_key":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp["code"])
		})
	}
}

func TestGetJob(t *testing.T) {
	router, cat, _ := newTestRouter(t)

	jobID := uuid.New()
	_, err := cat.Create(context.Background(), jobID, worker.JobTypeProcess, "uploads/a.mp4")
	require.NoError(t, err)

	rec := doJSON(t, router, "GET", "/v1/jobs/"+jobID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, jobID.String(), resp.ID)
	assert.Equal(t, "uploads/a.mp4", resp.SourceKey)
}

func TestGetJobNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/v1/jobs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, "GET", "/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs(t *testing.T) {
	router, cat, _ := newTestRouter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cat.Create(ctx, uuid.New(), worker.JobTypeProcess, "uploads/a.mp4")
		require.NoError(t, err)
	}
	failedID := uuid.New()
	_, err := cat.Create(ctx, failedID, worker.JobTypeProcess, "uploads/b.mp4")
	require.NoError(t, err)
	require.NoError(t, cat.Fail(ctx, failedID, "boom"))

	rec := doJSON(t, router, "GET", "/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(4), resp.Total)
	assert.Len(t, resp.Jobs, 4)
	assert.False(t, resp.HasMore)

	rec = doJSON(t, router, "GET", "/v1/jobs?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = JobListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, failedID.String(), resp.Jobs[0].ID)

	rec = doJSON(t, router, "GET", "/v1/jobs?limit=2", nil)
	resp = JobListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
	assert.True(t, resp.HasMore)

	rec = doJSON(t, router, "GET", "/v1/jobs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelJob(t *testing.T) {
	router, cat, _ := newTestRouter(t)
	ctx := context.Background()

	pendingID := uuid.New()
	_, err := cat.Create(ctx, pendingID, worker.JobTypeProcess, "uploads/a.mp4")
	require.NoError(t, err)

	runningID := uuid.New()
	_, err = cat.Create(ctx, runningID, worker.JobTypeProcess, "uploads/b.mp4")
	require.NoError(t, err)
	require.NoError(t, cat.MarkRunning(ctx, runningID))

	rec := doJSON(t, router, "DELETE", "/v1/jobs/"+pendingID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	row, err := cat.Get(ctx, pendingID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCanceled, row.Status)

	// Running jobs have already left the queue, canceling them is a conflict.
	rec = doJSON(t, router, "DELETE", "/v1/jobs/"+runningID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, "DELETE", "/v1/jobs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresignOutput(t *testing.T) {
	router, cat, store := newTestRouter(t)
	ctx := context.Background()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, worker.JobTypeProcess, "uploads/a.mp4")
	require.NoError(t, err)

	outputKey := "processed/" + jobID.String() + "/a_processed.mp4"
	seedObject(t, store, outputKey)

	rec := doJSON(t, router, "GET", "/v1/jobs/"+jobID.String()+"/outputs/url?key="+outputKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["url"])
	assert.EqualValues(t, defaultPresignExpiry, resp["expires_in"])

	// Keys outside the job's output prefix are rejected.
	rec = doJSON(t, router, "GET", "/v1/jobs/"+jobID.String()+"/outputs/url?key=uploads/a.mp4", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A well-formed key for a missing object is a 404.
	missingKey := "processed/" + jobID.String() + "/missing.jpg"
	rec = doJSON(t, router, "GET", "/v1/jobs/"+jobID.String()+"/outputs/url?key="+missingKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveness(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
