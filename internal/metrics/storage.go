package metrics

import (
	"context"
	"io"
	"time"

	"github.com/reelworks/reelworks/internal/storage"
)

// InstrumentedStorage wraps a Storage and records Prometheus metrics for
// every operation.
type InstrumentedStorage struct {
	storage.Storage
}

func NewInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	return &InstrumentedStorage{Storage: s}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error {
	start := time.Now()
	err := s.Storage.Upload(ctx, key, reader, contentType, size)
	observe("upload", start, err)
	if err == nil {
		StorageBytesTotal.WithLabelValues("upload").Add(float64(size))
	}
	return err
}

func (s *InstrumentedStorage) UploadFile(ctx context.Context, key, path, contentType string) error {
	start := time.Now()
	err := s.Storage.UploadFile(ctx, key, path, contentType)
	observe("upload", start, err)
	return err
}

func (s *InstrumentedStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	reader, err := s.Storage.Download(ctx, key)
	observe("download", start, err)
	if err != nil {
		return nil, err
	}
	return &countingReadCloser{ReadCloser: reader}, nil
}

func (s *InstrumentedStorage) DownloadFile(ctx context.Context, key, path string) (int64, error) {
	start := time.Now()
	n, err := s.Storage.DownloadFile(ctx, key, path)
	observe("download", start, err)
	if err == nil {
		StorageBytesTotal.WithLabelValues("download").Add(float64(n))
	}
	return n, err
}

func (s *InstrumentedStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Storage.Delete(ctx, key)
	observe("delete", start, err)
	return err
}

func (s *InstrumentedStorage) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	n, err := s.Storage.RemovePrefix(ctx, prefix)
	observe("remove_prefix", start, err)
	return n, err
}

func (s *InstrumentedStorage) GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error) {
	start := time.Now()
	url, err := s.Storage.GetPresignedURL(ctx, key, expirySeconds)
	observe("presign", start, err)
	return url, err
}

type countingReadCloser struct {
	io.ReadCloser
}

func (r *countingReadCloser) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n > 0 {
		StorageBytesTotal.WithLabelValues("download").Add(float64(n))
	}
	return n, err
}
