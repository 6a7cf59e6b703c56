package storage_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/core/storage"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	uploads []*storage.UploadRequest
	deleted []string
}

func (f *fakeProvider) Upload(_ context.Context, req *storage.UploadRequest) (*storage.UploadResponse, error) {
	f.uploads = append(f.uploads, req)
	return &storage.UploadResponse{
		FileID:    req.FileID,
		PublicURL: "https://cdn.example.com/" + req.FileID,
		Size:      req.ContentLength,
	}, nil
}

func (f *fakeProvider) PublicURL(_ context.Context, fileID string) (string, error) {
	return "https://cdn.example.com/" + fileID, nil
}

func (f *fakeProvider) PresignedURL(_ context.Context, fileID string, _ time.Duration) (string, error) {
	return "https://cdn.example.com/" + fileID + "?sig=abc", nil
}

func (f *fakeProvider) Delete(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}

func (f *fakeProvider) Stat(_ context.Context, fileID string) (*storage.FileInfo, error) {
	return nil, storage.ErrFileNotFound
}

func setupStorage(t *testing.T) (*storage.Service, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return storage.NewServiceWithProvider(provider, logger), provider
}

func TestUploadProductImageBuildsPrefixedID(t *testing.T) {
	svc, provider := setupStorage(t)
	productID := uuid.New()

	url, err := svc.UploadProductImage(context.Background(), productID,
		"photo.jpg", "image/jpeg", strings.NewReader("fake-bytes"), 10)
	require.NoError(t, err)
	require.Len(t, provider.uploads, 1)

	req := provider.uploads[0]
	require.Equal(t, "products/"+productID.String()+".jpg", req.FileID)
	require.Equal(t, "https://cdn.example.com/"+req.FileID, url)
	require.Equal(t, productID.String(), req.Metadata["owner_id"])
}

func TestUploadWorkerPhotoBuildsPrefixedID(t *testing.T) {
	svc, provider := setupStorage(t)
	workerID := uuid.New()

	_, err := svc.UploadWorkerPhoto(context.Background(), workerID,
		"portrait.png", "image/png", strings.NewReader("fake-bytes"), 10)
	require.NoError(t, err)
	require.Len(t, provider.uploads, 1)
	require.Equal(t, "workers/"+workerID.String()+".png", provider.uploads[0].FileID)
}

func TestUploadRejectsNonImageContentType(t *testing.T) {
	svc, provider := setupStorage(t)

	_, err := svc.UploadProductImage(context.Background(), uuid.New(),
		"doc.pdf", "application/pdf", strings.NewReader("%PDF"), 4)
	require.Error(t, err)

	var storageErr *storage.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "UNSUPPORTED_CONTENT_TYPE", storageErr.Code)
	require.Empty(t, provider.uploads)
}

func TestUploadRejectsOversizedImage(t *testing.T) {
	svc, provider := setupStorage(t)

	_, err := svc.UploadProductImage(context.Background(), uuid.New(),
		"huge.jpg", "image/jpeg", strings.NewReader(""), 11*1024*1024)
	require.Error(t, err)

	var storageErr *storage.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "FILE_TOO_LARGE", storageErr.Code)
	require.Empty(t, provider.uploads)
}

func TestDeleteImageForwardsToProvider(t *testing.T) {
	svc, provider := setupStorage(t)

	require.NoError(t, svc.DeleteImage(context.Background(), "products/x.jpg"))
	require.Equal(t, []string{"products/x.jpg"}, provider.deleted)
}
