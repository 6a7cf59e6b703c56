package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/config"
)

// maxImageSize caps catalog and listing images at 10MB.
const maxImageSize = 10 * 1024 * 1024

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Service stores product and worker images and hands back their public URLs.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

func NewService(cfg config.CloudConfig, logger *slog.Logger) (*Service, error) {
	var provider Provider
	var err error

	switch cfg.Provider {
	case "azure", "":
		provider, err = NewAzureProvider(cfg.Azure)
	default:
		return nil, &StorageError{
			Code:    "PROVIDER_NOT_FOUND",
			Message: fmt.Sprintf("unsupported storage provider %q", cfg.Provider),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}

	return &Service{
		provider: provider,
		logger:   logger.With("component", "storage-service"),
	}, nil
}

// NewServiceWithProvider wires an explicit provider, used by tests.
func NewServiceWithProvider(provider Provider, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		logger:   logger.With("component", "storage-service"),
	}
}

// UploadProductImage stores a catalog image under a products/ prefix and
// returns its public URL.
func (s *Service) UploadProductImage(ctx context.Context, productID uuid.UUID, fileName, contentType string, content io.Reader, contentLength int64) (string, error) {
	return s.uploadImage(ctx, "products/"+productID.String(), productID.String(), fileName, contentType, content, contentLength)
}

// UploadWorkerPhoto stores a worker listing photo under a workers/ prefix and
// returns its public URL.
func (s *Service) UploadWorkerPhoto(ctx context.Context, workerID uuid.UUID, fileName, contentType string, content io.Reader, contentLength int64) (string, error) {
	return s.uploadImage(ctx, "workers/"+workerID.String(), workerID.String(), fileName, contentType, content, contentLength)
}

func (s *Service) uploadImage(ctx context.Context, fileID, ownerID, fileName, contentType string, content io.Reader, contentLength int64) (string, error) {
	if err := validateImage(contentType, contentLength); err != nil {
		return "", err
	}

	if ext := imageExtension(contentType); ext != "" {
		fileID += ext
	}

	resp, err := s.provider.Upload(ctx, &UploadRequest{
		FileID:        fileID,
		FileName:      fileName,
		ContentType:   contentType,
		Content:       content,
		ContentLength: contentLength,
		Metadata: map[string]string{
			"owner_id": ownerID,
			"uploaded": time.Now().UTC().Format(time.RFC3339),
		},
		Tags: map[string]string{"type": "image"},
	})
	if err != nil {
		s.logger.Error("Image upload failed",
			"file_id", fileID,
			"error", err.Error())
		return "", fmt.Errorf("upload failed: %w", err)
	}

	s.logger.Info("Image uploaded",
		"file_id", resp.FileID,
		"size", resp.Size,
		"public_url", resp.PublicURL)

	return resp.PublicURL, nil
}

// TemporaryURL returns a presigned read URL, for admin previews of blobs in
// private containers.
func (s *Service) TemporaryURL(ctx context.Context, fileID string, expiration time.Duration) (string, error) {
	url, err := s.provider.PresignedURL(ctx, fileID, expiration)
	if err != nil {
		s.logger.Error("Failed to generate temporary URL",
			"file_id", fileID,
			"error", err.Error())
		return "", fmt.Errorf("failed to get presigned URL: %w", err)
	}
	return url, nil
}

func (s *Service) DeleteImage(ctx context.Context, fileID string) error {
	if err := s.provider.Delete(ctx, fileID); err != nil {
		s.logger.Error("Failed to delete image", "file_id", fileID, "error", err.Error())
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.Info("Image deleted", "file_id", fileID)
	return nil
}

func validateImage(contentType string, contentLength int64) error {
	if !imageContentTypes[strings.ToLower(contentType)] {
		return &StorageError{
			Code:    "UNSUPPORTED_CONTENT_TYPE",
			Message: fmt.Sprintf("content type %q is not an accepted image format", contentType),
		}
	}
	if contentLength > maxImageSize {
		return &StorageError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("image size %d exceeds limit of %d bytes", contentLength, maxImageSize),
		}
	}
	return nil
}

func imageExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
