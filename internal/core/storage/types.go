package storage

import (
	"context"
	"io"
	"time"
)

// Provider is the object storage surface the image service depends on.
type Provider interface {
	// Upload stores a blob and returns its assigned ID and public URL.
	Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error)

	// PublicURL returns the stable public URL for a stored blob.
	PublicURL(ctx context.Context, fileID string) (string, error)

	// PresignedURL returns a temporary read URL for a stored blob.
	PresignedURL(ctx context.Context, fileID string, expiration time.Duration) (string, error)

	// Delete removes a stored blob.
	Delete(ctx context.Context, fileID string) error

	// Stat retrieves blob metadata.
	Stat(ctx context.Context, fileID string) (*FileInfo, error)
}

type UploadRequest struct {
	// FileID is assigned by the provider when empty.
	FileID string

	FileName      string
	ContentType   string
	Content       io.Reader
	ContentLength int64
	Metadata      map[string]string
	Tags          map[string]string
}

type UploadResponse struct {
	FileID      string
	PublicURL   string
	Size        int64
	ContentType string
	ETag        string
	UploadedAt  time.Time
}

type FileInfo struct {
	FileID       string
	FileName     string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	PublicURL    string
	Metadata     map[string]string
}

var (
	ErrFileNotFound  = &StorageError{Code: "FILE_NOT_FOUND", Message: "file not found"}
	ErrInvalidFileID = &StorageError{Code: "INVALID_FILE_ID", Message: "invalid file id"}
	ErrInvalidConfig = &StorageError{Code: "INVALID_CONFIG", Message: "invalid storage configuration"}
)

// StorageError carries a stable code alongside the human-readable message.
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
