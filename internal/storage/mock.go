package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage is an in-memory implementation of Storage for testing.
// It stores objects in a map and is safe for concurrent use.
type MemoryStorage struct {
	objects map[string]memoryObject
	mu      sync.RWMutex
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
	}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key == "" {
		return ErrInvalidKey
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memoryObject{
		data:        data,
		contentType: contentType,
	}

	return nil
}

func (s *MemoryStorage) UploadFile(ctx context.Context, key, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return s.Upload(ctx, key, bytes.NewReader(data), contentType, int64(len(data)))
}

func (s *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MemoryStorage) DownloadFile(ctx context.Context, key, path string) (int64, error) {
	reader, err := s.Download(ctx, key)
	if err != nil {
		return 0, err
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return io.Copy(file, reader)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return ErrNotFound
	}

	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.objects[key]
	return exists, nil
}

func (s *MemoryStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(obj.data))})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *MemoryStorage) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range objects {
		delete(s.objects, obj.Key)
	}
	return len(objects), nil
}

func (s *MemoryStorage) GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNotFound
	}
	return fmt.Sprintf("https://storage.test/%s?expires=%d", key, expirySeconds), nil
}

func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// ContentType returns the stored content type for a key, for assertions.
func (s *MemoryStorage) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
