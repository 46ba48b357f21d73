package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var errMediaDisabled = errors.New("media storage is not configured")

type disabledStore struct {
	logger *zap.Logger
}

// NewDisabledStore returns a MediaStore used when no Cloudinary
// credentials are configured. Uploads fail, which registration treats as
// "no avatar"; destroys are no-ops.
func NewDisabledStore(logger *zap.Logger) MediaStore {
	return &disabledStore{logger: logger.Named("DisabledMediaStore")}
}

func (s *disabledStore) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	s.logger.Warn("Avatar upload requested but media storage is not configured", zap.String("path", localPath))
	return nil, errMediaDisabled
}

func (s *disabledStore) Destroy(ctx context.Context, publicID string) error {
	return nil
}
