package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/gcottom/retry"
	"github.com/gcottom/semaphore"
	"github.com/google/uuid"
	"github.com/reelworks/reelworks/internal/analysis"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/media"
	"github.com/reelworks/reelworks/internal/metrics"
	"github.com/reelworks/reelworks/internal/storage"
	"github.com/reelworks/reelworks/internal/tracing"
)

var (
	errMissingJobID     = errors.New("worker: payload missing job_id")
	errMissingSourceKey = errors.New("worker: payload missing source_key")
)

// Options tunes pipeline behavior shared by all handlers.
type Options struct {
	TempDir           string
	PublicBaseURL     string
	StorageRetries    int
	UploadConcurrency int
}

type Dependencies struct {
	Storage   storage.Storage
	Processor media.Processor
	Analyzer  analysis.Analyzer
	Catalog   catalog.Catalog
	Options   Options
}

func (d *Dependencies) storageRetries() int {
	if d.Options.StorageRetries < 1 {
		return 3
	}
	return d.Options.StorageRetries
}

func (d *Dependencies) uploadConcurrency() int {
	if d.Options.UploadConcurrency < 1 {
		return 4
	}
	return d.Options.UploadConcurrency
}

// Result is recorded in the catalog and returned to API clients. The shape
// follows the worker's original response contract: object keys, not URLs;
// clients presign or resolve against the public base URL themselves.
type Result struct {
	Status             string           `json:"status"`
	TranscodedVideoKey string           `json:"transcoded_video_key,omitempty"`
	ThumbnailKeys      []string         `json:"thumbnail_keys,omitempty"`
	AIAnalysis         *analysis.Result `json:"ai_analysis,omitempty"`
	Metadata           *media.Metadata  `json:"metadata,omitempty"`
	PublicBaseURL      string           `json:"public_base_url,omitempty"`
}

type pipelineFunc func(ctx context.Context, deps *Dependencies, payload Payload, ws *workspace) (*Result, error)

func ProcessHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return handle(deps, JobTypeProcess, runProcess)
}

func TranscodeHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return handle(deps, JobTypeTranscode, runTranscode)
}

func ThumbnailsHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return handle(deps, JobTypeThumbnails, runThumbnails)
}

func ProbeHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return handle(deps, JobTypeProbe, runProbe)
}

// handle wraps a pipeline with the shared job plumbing: payload decoding,
// trace propagation, catalog bookkeeping, workspace lifecycle.
func handle(deps *Dependencies, jobType string, pipeline pipelineFunc) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		var payload Payload
		if err := j.UnmarshalPayload(&payload); err != nil {
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}
		if err := payload.validate(); err != nil {
			return middleware.Permanent(err)
		}

		ctx = tracing.ExtractTraceContext(ctx, payload.Trace)
		ctx, span := tracing.StartJobSpan(ctx, jobType, payload.JobID.String())
		defer span.End()

		ctx = logger.WithJobID(ctx, payload.JobID.String())
		log := logger.FromContext(ctx).With("job_type", jobType, "source_key", payload.SourceKey)
		ctx = logger.WithLogger(ctx, log)

		log.Info("job started")
		start := time.Now()

		if err := deps.Catalog.MarkRunning(ctx, payload.JobID); err != nil {
			// A missing or terminal row means the job was canceled or
			// cleaned up after enqueue; retrying cannot bring it back.
			if errors.Is(err, catalog.ErrNotFound) {
				log.Info("job row missing or terminal, dropping message")
				return middleware.Permanent(fmt.Errorf("mark running: %w", err))
			}
			log.Error("failed to mark job running", "error", err)
			return fmt.Errorf("mark running: %w", err)
		}

		ws, err := newWorkspace(deps.Options.TempDir, payload.JobID)
		if err != nil {
			log.Error("failed to create workspace", "error", err)
			return fmt.Errorf("create workspace: %w", err)
		}
		defer func() {
			if err := ws.cleanup(); err != nil {
				log.Warn("workspace cleanup failed", "error", err)
			}
		}()

		result, err := pipeline(ctx, deps, payload, ws)
		if err != nil {
			tracing.RecordError(ctx, err)
			return failJob(ctx, deps, payload.JobID, err)
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return failJob(ctx, deps, payload.JobID, fmt.Errorf("marshal result: %w", err))
		}

		if err := deps.Catalog.Complete(ctx, payload.JobID, resultJSON); err != nil {
			log.Error("failed to record result", "error", err)
			return fmt.Errorf("record result: %w", err)
		}

		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

// failJob decides between permanent and retryable failure. Bad media and bad
// payloads never heal, so they fail the catalog row immediately. Transient
// errors leave the row running; the queue retries, and the stale reaper
// covers the case where retries run out.
func failJob(ctx context.Context, deps *Dependencies, jobID uuid.UUID, err error) error {
	log := logger.FromContext(ctx)

	permanent := errors.Is(err, media.ErrInvalidMedia) ||
		errors.Is(err, media.ErrMediaTooLong) ||
		errors.Is(err, media.ErrTranscodeFailed) ||
		errors.Is(err, media.ErrThumbnailFailed) ||
		errors.Is(err, storage.ErrNotFound)

	if !permanent {
		log.Warn("job failed, will retry", "error", err)
		return err
	}

	log.Error("job failed permanently", "error", err)
	if ferr := deps.Catalog.Fail(ctx, jobID, err.Error()); ferr != nil {
		log.Error("failed to record job failure", "error", ferr)
	}
	return middleware.Permanent(err)
}

// Pipelines

func runProcess(ctx context.Context, deps *Dependencies, payload Payload, ws *workspace) (*Result, error) {
	inputPath, err := downloadSource(ctx, deps, payload.SourceKey, ws)
	if err != nil {
		return nil, err
	}

	metadata, transcodedPath, err := transcodeStage(ctx, deps, inputPath, ws, payload.SourceKey)
	if err != nil {
		return nil, err
	}

	thumbnails, err := thumbnailStage(ctx, deps, transcodedPath, ws)
	if err != nil {
		return nil, err
	}

	aiResult := analysisStage(ctx, deps, thumbnails)

	outputPrefix := outputPrefixFor(payload.JobID.String())
	videoKey, thumbnailKeys, err := uploadOutputs(ctx, deps, outputPrefix, transcodedPath, thumbnails)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:             "success",
		TranscodedVideoKey: videoKey,
		ThumbnailKeys:      thumbnailKeys,
		AIAnalysis:         aiResult,
		Metadata:           metadata,
		PublicBaseURL:      publicBaseURL(deps.Options.PublicBaseURL, outputPrefix),
	}, nil
}

func runTranscode(ctx context.Context, deps *Dependencies, payload Payload, ws *workspace) (*Result, error) {
	inputPath, err := downloadSource(ctx, deps, payload.SourceKey, ws)
	if err != nil {
		return nil, err
	}

	metadata, transcodedPath, err := transcodeStage(ctx, deps, inputPath, ws, payload.SourceKey)
	if err != nil {
		return nil, err
	}

	outputPrefix := outputPrefixFor(payload.JobID.String())
	videoKey, _, err := uploadOutputs(ctx, deps, outputPrefix, transcodedPath, nil)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:             "success",
		TranscodedVideoKey: videoKey,
		Metadata:           metadata,
		PublicBaseURL:      publicBaseURL(deps.Options.PublicBaseURL, outputPrefix),
	}, nil
}

func runThumbnails(ctx context.Context, deps *Dependencies, payload Payload, ws *workspace) (*Result, error) {
	inputPath, err := downloadSource(ctx, deps, payload.SourceKey, ws)
	if err != nil {
		return nil, err
	}

	thumbnails, err := thumbnailStage(ctx, deps, inputPath, ws)
	if err != nil {
		return nil, err
	}

	outputPrefix := outputPrefixFor(payload.JobID.String())
	_, thumbnailKeys, err := uploadOutputs(ctx, deps, outputPrefix, "", thumbnails)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:        "success",
		ThumbnailKeys: thumbnailKeys,
		PublicBaseURL: publicBaseURL(deps.Options.PublicBaseURL, outputPrefix),
	}, nil
}

func runProbe(ctx context.Context, deps *Dependencies, payload Payload, ws *workspace) (*Result, error) {
	inputPath, err := downloadSource(ctx, deps, payload.SourceKey, ws)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	metadata, err := deps.Processor.Probe(ctx, inputPath)
	metrics.PipelineStageDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrInvalidMedia, err)
	}

	return &Result{
		Status:   "success",
		Metadata: metadata,
	}, nil
}

// Stages

func downloadSource(ctx context.Context, deps *Dependencies, sourceKey string, ws *workspace) (string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	if exists, err := deps.Storage.Exists(ctx, sourceKey); err == nil && !exists {
		return "", fmt.Errorf("source %s: %w", sourceKey, storage.ErrNotFound)
	}

	inputPath := ws.inputPath(sourceKey)
	res, err := retry.Retry(retry.NewAlgSimpleDefault(), deps.storageRetries(), deps.Storage.DownloadFile, ctx, sourceKey, inputPath)
	metrics.PipelineStageDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("source download failed", "error", err)
		return "", fmt.Errorf("download source %s: %w", sourceKey, err)
	}

	log.Debug("source downloaded", "bytes", res[0], "duration_ms", time.Since(start).Milliseconds())
	return inputPath, nil
}

func transcodeStage(ctx context.Context, deps *Dependencies, inputPath string, ws *workspace, sourceKey string) (*media.Metadata, string, error) {
	log := logger.FromContext(ctx)

	probeStart := time.Now()
	metadata, err := deps.Processor.Probe(ctx, inputPath)
	metrics.PipelineStageDuration.WithLabelValues("probe").Observe(time.Since(probeStart).Seconds())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", media.ErrInvalidMedia, err)
	}

	transcodedPath := ws.outputPath(transcodedFilename(sourceKey))

	start := time.Now()
	err = deps.Processor.TranscodeMP4(ctx, inputPath, transcodedPath)
	metrics.PipelineStageDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", err
	}

	if info, err := os.Stat(transcodedPath); err == nil {
		metrics.TranscodeOutputBytes.Observe(float64(info.Size()))
	}

	log.Debug("transcode stage completed", "duration_ms", time.Since(start).Milliseconds())
	return metadata, transcodedPath, nil
}

func thumbnailStage(ctx context.Context, deps *Dependencies, inputPath string, ws *workspace) ([]string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	thumbnails, err := deps.Processor.GenerateThumbnails(ctx, inputPath, ws.outputDir)
	metrics.PipelineStageDuration.WithLabelValues("thumbnails").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.ThumbnailsGenerated.Observe(float64(len(thumbnails)))
	log.Debug("thumbnail stage completed", "count", len(thumbnails), "duration_ms", time.Since(start).Milliseconds())
	return thumbnails, nil
}

// analysisStage never fails the job: a broken analyzer degrades to a
// pending result.
func analysisStage(ctx context.Context, deps *Dependencies, thumbnails []string) *analysis.Result {
	log := logger.FromContext(ctx)

	if deps.Analyzer == nil {
		return nil
	}

	start := time.Now()
	result, err := deps.Analyzer.AnalyzeThumbnails(ctx, thumbnails)
	metrics.PipelineStageDuration.WithLabelValues("analysis").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("analysis failed", "error", err)
		return &analysis.Result{Status: "failed", Message: err.Error()}
	}
	return result
}

func uploadOutputs(ctx context.Context, deps *Dependencies, outputPrefix, videoPath string, thumbnails []string) (string, []string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	}()

	var videoKey string
	if videoPath != "" {
		videoKey = outputPrefix + "/" + filepath.Base(videoPath)
		if _, err := retry.Retry(retry.NewAlgSimpleDefault(), deps.storageRetries(), deps.Storage.UploadFile, ctx, videoKey, videoPath, "video/mp4"); err != nil {
			log.Error("video upload failed", "key", videoKey, "error", err)
			return "", nil, fmt.Errorf("upload video %s: %w", videoKey, err)
		}
	}

	if len(thumbnails) == 0 {
		return videoKey, nil, nil
	}

	limiter := semaphore.NewSemaphore(deps.uploadConcurrency())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	thumbnailKeys := make([]string, len(thumbnails))
	for i, path := range thumbnails {
		wg.Add(1)
		limiter.Acquire()
		go func(i int, path string) {
			defer wg.Done()
			defer limiter.Release()

			key := outputPrefix + "/thumbnails/" + filepath.Base(path)
			if _, err := retry.Retry(retry.NewAlgSimpleDefault(), deps.storageRetries(), deps.Storage.UploadFile, ctx, key, path, "image/jpeg"); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("upload thumbnail %s: %w", key, err)
				}
				mu.Unlock()
				return
			}
			thumbnailKeys[i] = key
		}(i, path)
	}
	wg.Wait()

	if firstErr != nil {
		log.Error("thumbnail upload failed", "error", firstErr)
		return "", nil, firstErr
	}

	log.Debug("outputs uploaded", "video_key", videoKey, "thumbnails", len(thumbnailKeys), "duration_ms", time.Since(start).Milliseconds())
	return videoKey, thumbnailKeys, nil
}

// Naming helpers

func outputPrefixFor(jobID string) string {
	return "processed/" + jobID
}

func transcodedFilename(sourceKey string) string {
	base := filepath.Base(sourceKey)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_processed.mp4"
}

func publicBaseURL(base, outputPrefix string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + outputPrefix
}
