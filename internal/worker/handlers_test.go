package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelworks/reelworks/internal/analysis"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/media"
	"github.com/reelworks/reelworks/internal/storage"
)

// fakeProcessor produces deterministic outputs without shelling out to ffmpeg.
type fakeProcessor struct {
	thumbCount   int
	transcodeErr error
	thumbErr     error
	probeErr     error
}

func (p *fakeProcessor) TranscodeMP4(ctx context.Context, inputPath, outputPath string) error {
	if p.transcodeErr != nil {
		return p.transcodeErr
	}
	return os.WriteFile(outputPath, []byte("transcoded"), 0o644)
}

func (p *fakeProcessor) GenerateThumbnails(ctx context.Context, inputPath, outputDir string) ([]string, error) {
	if p.thumbErr != nil {
		return nil, p.thumbErr
	}
	var paths []string
	for i := 1; i <= p.thumbCount; i++ {
		path := filepath.Join(outputDir, fmt.Sprintf("thumb_%03d.jpg", i))
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (p *fakeProcessor) Probe(ctx context.Context, path string) (*media.Metadata, error) {
	if p.probeErr != nil {
		return nil, p.probeErr
	}
	return &media.Metadata{
		Duration:   42.5,
		Width:      1920,
		Height:     1080,
		VideoCodec: "h264",
		HasAudio:   true,
	}, nil
}

func testDeps(t *testing.T) (*Dependencies, *storage.MemoryStorage, *catalog.MemoryCatalog) {
	t.Helper()

	store := storage.NewMemoryStorage()
	cat := catalog.NewMemoryCatalog()
	deps := &Dependencies{
		Storage:   store,
		Processor: &fakeProcessor{thumbCount: 3},
		Analyzer:  analysis.NewStubAnalyzer(),
		Catalog:   cat,
		Options: Options{
			TempDir:           t.TempDir(),
			PublicBaseURL:     "https://media.example.com",
			StorageRetries:    1,
			UploadConcurrency: 2,
		},
	}
	return deps, store, cat
}

func testContext() context.Context {
	return logger.WithLogger(context.Background(), logger.NewTestLogger())
}

func seedSource(t *testing.T, store *storage.MemoryStorage, key string) {
	t.Helper()
	err := store.Upload(context.Background(), key, bytes.NewReader([]byte("source video")), "video/mp4", 12)
	require.NoError(t, err)
}

func newQueueJob(t *testing.T, jobType string, payload Payload) *job.Job {
	t.Helper()
	j, err := job.New(jobType, payload)
	require.NoError(t, err)
	return j
}

func TestProcessHandler(t *testing.T) {
	deps, store, cat := testDeps(t)
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/clip.mov")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.mov")

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/clip.mov")))
	require.NoError(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCompleted, row.Status)

	var result Result
	require.NoError(t, json.Unmarshal(row.Result, &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "processed/"+jobID.String()+"/clip_processed.mp4", result.TranscodedVideoKey)
	assert.Len(t, result.ThumbnailKeys, 3)
	assert.Equal(t, "processed/"+jobID.String()+"/thumbnails/thumb_001.jpg", result.ThumbnailKeys[0])
	require.NotNil(t, result.AIAnalysis)
	assert.Equal(t, "pending", result.AIAnalysis.Status)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, 1920, result.Metadata.Width)
	assert.Equal(t, "https://media.example.com/processed/"+jobID.String(), result.PublicBaseURL)

	exists, err := store.Exists(ctx, result.TranscodedVideoKey)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "video/mp4", store.ContentType(result.TranscodedVideoKey))
	assert.Equal(t, "image/jpeg", store.ContentType(result.ThumbnailKeys[2]))
}

func TestProcessHandlerMissingSource(t *testing.T) {
	deps, _, cat := testDeps(t)
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/gone.mp4")
	require.NoError(t, err)

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/gone.mp4")))
	require.Error(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusFailed, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "uploads/gone.mp4")
}

func TestProcessHandlerTranscodeFailure(t *testing.T) {
	deps, store, cat := testDeps(t)
	deps.Processor = &fakeProcessor{transcodeErr: fmt.Errorf("%w: exit status 1", media.ErrTranscodeFailed)}
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/bad.mp4")
	require.NoError(t, err)
	seedSource(t, store, "uploads/bad.mp4")

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/bad.mp4")))
	require.Error(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusFailed, row.Status)
}

// flakyStorage fails every UploadFile call to exercise the transient path.
type flakyStorage struct {
	storage.Storage
	uploadErr error
}

func (s *flakyStorage) UploadFile(ctx context.Context, key, path, contentType string) error {
	return s.uploadErr
}

func TestProcessHandlerUploadFailureRetries(t *testing.T) {
	deps, store, cat := testDeps(t)
	deps.Storage = &flakyStorage{Storage: store, uploadErr: fmt.Errorf("connection reset")}
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/clip.mp4")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.mp4")

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/clip.mp4")))
	require.Error(t, err)

	// Transient storage errors go back to the queue for a retry: the row
	// stays running rather than being failed.
	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusRunning, row.Status)
	assert.Nil(t, row.ErrorMessage)
	assert.Empty(t, row.Result)
}

type failingAnalyzer struct{}

func (failingAnalyzer) AnalyzeThumbnails(ctx context.Context, paths []string) (*analysis.Result, error) {
	return nil, fmt.Errorf("model quota exceeded")
}

func TestProcessHandlerAnalyzerFailureStillCompletes(t *testing.T) {
	deps, store, cat := testDeps(t)
	deps.Analyzer = failingAnalyzer{}
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/clip.mp4")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.mp4")

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/clip.mp4")))
	require.NoError(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCompleted, row.Status)

	var result Result
	require.NoError(t, json.Unmarshal(row.Result, &result))
	assert.Equal(t, "success", result.Status)
	require.NotNil(t, result.AIAnalysis)
	assert.Equal(t, "failed", result.AIAnalysis.Status)
	assert.Contains(t, result.AIAnalysis.Message, "model quota exceeded")
}

func TestProcessHandlerCanceledJobDropped(t *testing.T) {
	deps, store, cat := testDeps(t)
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProcess, "uploads/clip.mp4")
	require.NoError(t, err)
	require.NoError(t, cat.Cancel(ctx, jobID))
	seedSource(t, store, "uploads/clip.mp4")

	handler := ProcessHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(jobID, "uploads/clip.mp4")))
	require.Error(t, err)

	// The canceled row is left alone and nothing was processed.
	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCanceled, row.Status)
	assert.Equal(t, 1, store.Len())
}

func TestProcessHandlerInvalidPayload(t *testing.T) {
	deps, _, _ := testDeps(t)
	ctx := testContext()

	handler := ProcessHandler(deps)
	err := handler(ctx, newQueueJob(t, JobTypeProcess, NewPayload(uuid.New(), "")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing source_key")
}

func TestTranscodeHandler(t *testing.T) {
	deps, store, cat := testDeps(t)
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeTranscode, "uploads/clip.webm")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.webm")

	handler := TranscodeHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeTranscode, NewPayload(jobID, "uploads/clip.webm")))
	require.NoError(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)

	var result Result
	require.NoError(t, json.Unmarshal(row.Result, &result))
	assert.Equal(t, "processed/"+jobID.String()+"/clip_processed.mp4", result.TranscodedVideoKey)
	assert.Empty(t, result.ThumbnailKeys)
	assert.Nil(t, result.AIAnalysis)
}

func TestThumbnailsHandler(t *testing.T) {
	deps, store, cat := testDeps(t)
	deps.Processor = &fakeProcessor{thumbCount: 5}
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeThumbnails, "uploads/clip.mp4")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.mp4")

	handler := ThumbnailsHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeThumbnails, NewPayload(jobID, "uploads/clip.mp4")))
	require.NoError(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)

	var result Result
	require.NoError(t, json.Unmarshal(row.Result, &result))
	assert.Empty(t, result.TranscodedVideoKey)
	assert.Len(t, result.ThumbnailKeys, 5)
}

func TestProbeHandler(t *testing.T) {
	deps, store, cat := testDeps(t)
	ctx := testContext()

	jobID := uuid.New()
	_, err := cat.Create(ctx, jobID, JobTypeProbe, "uploads/clip.mp4")
	require.NoError(t, err)
	seedSource(t, store, "uploads/clip.mp4")

	handler := ProbeHandler(deps)
	err = handler(ctx, newQueueJob(t, JobTypeProbe, NewPayload(jobID, "uploads/clip.mp4")))
	require.NoError(t, err)

	row, err := cat.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCompleted, row.Status)

	var result Result
	require.NoError(t, json.Unmarshal(row.Result, &result))
	require.NotNil(t, result.Metadata)
	assert.InDelta(t, 42.5, result.Metadata.Duration, 0.001)
	assert.Empty(t, result.TranscodedVideoKey)

	// Probe uploads nothing.
	assert.Equal(t, 1, store.Len())
}

func TestTranscodedFilename(t *testing.T) {
	tests := []struct {
		sourceKey string
		want      string
	}{
		{"uploads/clip.mov", "clip_processed.mp4"},
		{"clip.mp4", "clip_processed.mp4"},
		{"a/b/c/video.long.name.webm", "video.long.name_processed.mp4"},
		{"noext", "noext_processed.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.sourceKey, func(t *testing.T) {
			assert.Equal(t, tt.want, transcodedFilename(tt.sourceKey))
		})
	}
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "", publicBaseURL("", "processed/x"))
	assert.Equal(t, "https://cdn.example.com/processed/x", publicBaseURL("https://cdn.example.com", "processed/x"))
	assert.Equal(t, "https://cdn.example.com/processed/x", publicBaseURL("https://cdn.example.com/", "processed/x"))
}

type fakeBroker struct {
	jobType string
	payload interface{}
	err     error
}

func (b *fakeBroker) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.jobType = jobType
	b.payload = payload
	return "queue-1", nil
}

func TestEnqueuer(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	broker := &fakeBroker{}
	enq := NewEnqueuer(broker, cat)
	ctx := testContext()

	row, err := enq.Enqueue(ctx, JobTypeProcess, "uploads/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, row.Status)
	assert.Equal(t, JobTypeProcess, broker.jobType)

	payload, ok := broker.payload.(Payload)
	require.True(t, ok)
	assert.Equal(t, row.ID, payload.JobID)
	assert.Equal(t, "uploads/clip.mp4", payload.SourceKey)

	stored, err := cat.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/clip.mp4", stored.SourceKey)
}

func TestEnqueuerUnknownJobType(t *testing.T) {
	enq := NewEnqueuer(&fakeBroker{}, catalog.NewMemoryCatalog())

	_, err := enq.Enqueue(testContext(), "video.explode", "uploads/clip.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
}

func TestRunCleanup(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	store := storage.NewMemoryStorage()
	ctx := testContext()

	// Completed job with outputs, already past retention.
	doneID := uuid.New()
	_, err := cat.Create(ctx, doneID, JobTypeProcess, "uploads/a.mp4")
	require.NoError(t, err)
	require.NoError(t, cat.MarkRunning(ctx, doneID))
	require.NoError(t, cat.Complete(ctx, doneID, json.RawMessage(`{"status":"success"}`)))
	prefix := "processed/" + doneID.String() + "/"
	require.NoError(t, store.Upload(ctx, prefix+"a_processed.mp4", bytes.NewReader([]byte("v")), "video/mp4", 1))
	require.NoError(t, store.Upload(ctx, prefix+"thumbnails/thumb_001.jpg", bytes.NewReader([]byte("t")), "image/jpeg", 1))

	// Running job whose worker vanished.
	staleID := uuid.New()
	_, err = cat.Create(ctx, staleID, JobTypeProcess, "uploads/b.mp4")
	require.NoError(t, err)
	require.NoError(t, cat.MarkRunning(ctx, staleID))

	// Fresh pending job stays untouched.
	pendingID := uuid.New()
	_, err = cat.Create(ctx, pendingID, JobTypeProcess, "uploads/c.mp4")
	require.NoError(t, err)

	// Zero stale age and negative retention make "now" old enough.
	stats, err := RunCleanup(ctx, cat, store, 0, -time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.StaleReaped)
	assert.Equal(t, 2, stats.JobsDeleted) // completed job plus the freshly reaped one
	assert.Equal(t, 2, stats.ObjectsRemoved)

	_, err = cat.Get(ctx, doneID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	pending, err := cat.Get(ctx, pendingID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, pending.Status)

	assert.Equal(t, 0, store.Len())
}
