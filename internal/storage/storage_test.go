package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	data := []byte("fake mp4 bytes")
	if err := s.Upload(ctx, "uploads/source.mp4", bytes.NewReader(data), "video/mp4", int64(len(data))); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	reader, err := s.Download(ctx, "uploads/source.mp4")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("downloaded data does not match uploaded data")
	}

	if ct := s.ContentType("uploads/source.mp4"); ct != "video/mp4" {
		t.Errorf("content type = %q, want video/mp4", ct)
	}
}

func TestMemoryStorageNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if _, err := s.Download(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPresignedURL(ctx, "missing", 60); err != ErrNotFound {
		t.Errorf("GetPresignedURL() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorageEmptyKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	err := s.Upload(ctx, "", bytes.NewReader([]byte("x")), "text/plain", 1)
	if err != ErrInvalidKey {
		t.Errorf("Upload() error = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryStorageList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	keys := []string{
		"processed/job-1/video.mp4",
		"processed/job-1/thumbnails/thumb_001.jpg",
		"processed/job-1/thumbnails/thumb_002.jpg",
		"processed/job-2/video.mp4",
	}
	for _, key := range keys {
		if err := s.Upload(ctx, key, bytes.NewReader([]byte("x")), "application/octet-stream", 1); err != nil {
			t.Fatalf("Upload(%s) error: %v", key, err)
		}
	}

	objects, err := s.List(ctx, "processed/job-1/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("List() returned %d objects, want 3", len(objects))
	}

	// List is sorted, thumbnails keep their numeric order
	if objects[0].Key != "processed/job-1/thumbnails/thumb_001.jpg" {
		t.Errorf("first key = %q", objects[0].Key)
	}
}

func TestMemoryStorageRemovePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for _, key := range []string{"processed/old/video.mp4", "processed/old/thumbnails/thumb_001.jpg", "processed/new/video.mp4"} {
		if err := s.Upload(ctx, key, bytes.NewReader([]byte("x")), "application/octet-stream", 1); err != nil {
			t.Fatalf("Upload(%s) error: %v", key, err)
		}
	}

	removed, err := s.RemovePrefix(ctx, "processed/old/")
	if err != nil {
		t.Fatalf("RemovePrefix() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Errorf("remaining objects = %d, want 1", s.Len())
	}
}

func TestMemoryStorageFileHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	dir := t.TempDir()

	src := filepath.Join(dir, "input.mp4")
	if err := os.WriteFile(src, []byte("video contents"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	if err := s.UploadFile(ctx, "uploads/input.mp4", src, "video/mp4"); err != nil {
		t.Fatalf("UploadFile() error: %v", err)
	}

	dst := filepath.Join(dir, "output.mp4")
	n, err := s.DownloadFile(ctx, "uploads/input.mp4", dst)
	if err != nil {
		t.Fatalf("DownloadFile() error: %v", err)
	}
	if n != int64(len("video contents")) {
		t.Errorf("DownloadFile() wrote %d bytes", n)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "video contents" {
		t.Error("downloaded file does not match original")
	}
}

func TestMemoryStorageCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStorage()
	if err := s.Upload(ctx, "k", bytes.NewReader([]byte("x")), "text/plain", 1); err == nil {
		t.Error("Upload() succeeded with canceled context")
	}
	if _, err := s.Download(ctx, "k"); err == nil {
		t.Error("Download() succeeded with canceled context")
	}
}
