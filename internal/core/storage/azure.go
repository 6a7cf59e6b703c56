package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/config"
)

// AzureProvider stores blobs in Azure Blob Storage.
type AzureProvider struct {
	client        *azblob.Client
	containerName string
	config        config.AzureCloudConfig
}

func NewAzureProvider(cfg config.AzureCloudConfig) (*AzureProvider, error) {
	if cfg.ContainerName == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.ConnectionString == "" && (cfg.StorageAccountName == "" || cfg.StorageAccountKey == "") {
		return nil, ErrInvalidConfig
	}

	var client *azblob.Client
	var err error

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.StorageAccountName)
		credential, credErr := azblob.NewSharedKeyCredential(cfg.StorageAccountName, cfg.StorageAccountKey)
		if credErr != nil {
			return nil, &StorageError{
				Code:    "AZURE_CREDENTIAL_ERROR",
				Message: "failed to create Azure credentials",
				Cause:   credErr,
			}
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	}

	if err != nil {
		return nil, &StorageError{
			Code:    "AZURE_CLIENT_ERROR",
			Message: "failed to create Azure Blob Storage client",
			Cause:   err,
		}
	}

	return &AzureProvider{
		client:        client,
		containerName: cfg.ContainerName,
		config:        cfg,
	}, nil
}

func (p *AzureProvider) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req == nil || req.Content == nil {
		return nil, &StorageError{Code: "INVALID_REQUEST", Message: "upload request is incomplete"}
	}

	fileID := req.FileID
	if fileID == "" {
		fileID = uuid.New().String()
		if ext := filepath.Ext(req.FileName); ext != "" {
			fileID += ext
		}
	}

	metadata := make(map[string]*string)
	if req.FileName != "" {
		metadata["filename"] = to.Ptr(req.FileName)
	}
	for k, v := range req.Metadata {
		metadata[k] = to.Ptr(v)
	}

	uploadOptions := &azblob.UploadStreamOptions{
		Metadata: metadata,
		Tags:     req.Tags,
	}
	if req.ContentType != "" {
		uploadOptions.HTTPHeaders = &blob.HTTPHeaders{
			BlobContentType: to.Ptr(req.ContentType),
		}
	}

	uploadResponse, err := p.client.UploadStream(ctx, p.containerName, fileID, req.Content, uploadOptions)
	if err != nil {
		return nil, &StorageError{
			Code:    "UPLOAD_FAILED",
			Message: "failed to upload blob",
			Cause:   err,
		}
	}

	response := &UploadResponse{
		FileID:      fileID,
		PublicURL:   p.publicURL(fileID),
		ContentType: req.ContentType,
		UploadedAt:  time.Now().UTC(),
	}
	if uploadResponse.ETag != nil {
		response.ETag = string(*uploadResponse.ETag)
	}
	if req.ContentLength > 0 {
		response.Size = req.ContentLength
	}

	return response, nil
}

func (p *AzureProvider) PublicURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}
	return p.publicURL(fileID), nil
}

func (p *AzureProvider) PresignedURL(ctx context.Context, fileID string, expiration time.Duration) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}

	if _, err := p.blobClient(fileID).GetProperties(ctx, nil); err != nil {
		return "", &StorageError{
			Code:    "FILE_NOT_FOUND",
			Message: "blob not found",
			Cause:   err,
		}
	}

	credential, err := azblob.NewSharedKeyCredential(p.config.StorageAccountName, p.config.StorageAccountKey)
	if err != nil {
		return "", &StorageError{
			Code:    "AZURE_CREDENTIAL_ERROR",
			Message: "failed to create Azure credentials",
			Cause:   err,
		}
	}

	sasQueryParams, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    time.Now().UTC().Add(expiration),
		ContainerName: p.containerName,
		BlobName:      fileID,
		Permissions:   to.Ptr(sas.BlobPermissions{Read: true}).String(),
	}.SignWithSharedKey(credential)
	if err != nil {
		return "", &StorageError{
			Code:    "SAS_GENERATION_FAILED",
			Message: "failed to generate SAS token",
			Cause:   err,
		}
	}

	return p.publicURL(fileID) + "?" + sasQueryParams.Encode(), nil
}

func (p *AzureProvider) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrInvalidFileID
	}

	if _, err := p.blobClient(fileID).Delete(ctx, nil); err != nil {
		return &StorageError{
			Code:    "DELETE_FAILED",
			Message: "failed to delete blob",
			Cause:   err,
		}
	}

	return nil
}

func (p *AzureProvider) Stat(ctx context.Context, fileID string) (*FileInfo, error) {
	if fileID == "" {
		return nil, ErrInvalidFileID
	}

	props, err := p.blobClient(fileID).GetProperties(ctx, nil)
	if err != nil {
		return nil, &StorageError{
			Code:    "FILE_NOT_FOUND",
			Message: "blob not found",
			Cause:   err,
		}
	}

	fileInfo := &FileInfo{
		FileID:    fileID,
		PublicURL: p.publicURL(fileID),
		Metadata:  make(map[string]string),
	}
	if props.ContentLength != nil {
		fileInfo.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		fileInfo.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		fileInfo.LastModified = *props.LastModified
	}
	if props.ETag != nil {
		fileInfo.ETag = string(*props.ETag)
	}
	for k, v := range props.Metadata {
		if v != nil {
			if k == "filename" {
				fileInfo.FileName = *v
			}
			fileInfo.Metadata[k] = *v
		}
	}

	return fileInfo, nil
}

func (p *AzureProvider) blobClient(fileID string) *blob.Client {
	return p.client.ServiceClient().NewContainerClient(p.containerName).NewBlobClient(fileID)
}

func (p *AzureProvider) publicURL(fileID string) string {
	if p.config.BaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", p.config.BaseURL, p.containerName, fileID)
	}

	protocol := "https"
	if !p.config.UseHTTPS {
		protocol = "http"
	}

	return fmt.Sprintf("%s://%s.blob.core.windows.net/%s/%s",
		protocol, p.config.StorageAccountName, p.containerName, url.QueryEscape(fileID))
}
