package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound   = errors.New("storage: object not found")
	ErrInvalidKey = errors.New("storage: invalid key")
)

// ObjectInfo describes a stored object returned by List.
type ObjectInfo struct {
	Key  string
	Size int64
}

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error
	UploadFile(ctx context.Context, key, path, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	DownloadFile(ctx context.Context, key, path string) (int64, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	RemovePrefix(ctx context.Context, prefix string) (int, error)
	GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error)
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}
