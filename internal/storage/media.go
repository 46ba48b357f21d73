package storage

import "context"

// UploadResult describes an asset stored on the image host.
type UploadResult struct {
	URL      string
	PublicID string
}

// MediaStore is the external image-hosting collaborator. Destroy is the
// compensating action for Upload when a later registration step fails.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}
