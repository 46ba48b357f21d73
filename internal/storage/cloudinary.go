package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// Compile-time check to ensure cloudinaryStore implements MediaStore
var _ MediaStore = (*cloudinaryStore)(nil)

type cloudinaryStore struct {
	client *cloudinary.Cloudinary
	logger *zap.Logger
}

// NewCloudinaryStore creates a MediaStore backed by Cloudinary.
func NewCloudinaryStore(cloudName, apiKey, apiSecret string, logger *zap.Logger) (MediaStore, error) {
	client, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &cloudinaryStore{
		client: client,
		logger: logger.Named("CloudinaryStore"),
	}, nil
}

// Upload pushes a local file to Cloudinary and removes the local spool
// file regardless of the outcome.
func (s *cloudinaryStore) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove local upload file", zap.Error(err), zap.String("path", localPath))
		}
	}()

	resp, err := s.client.Upload.Upload(ctx, localPath, uploader.UploadParams{ResourceType: "auto"})
	if err != nil {
		s.logger.Error("Failed to upload file to cloudinary", zap.Error(err), zap.String("path", localPath))
		return nil, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}

	s.logger.Info("File uploaded to cloudinary", zap.String("url", resp.SecureURL), zap.String("publicID", resp.PublicID))
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// Destroy removes a previously uploaded asset.
func (s *cloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		s.logger.Error("Failed to delete asset from cloudinary", zap.Error(err), zap.String("publicID", publicID))
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	s.logger.Info("Deleted asset from cloudinary", zap.String("publicID", publicID))
	return nil
}
