package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultPresignedURLExpiry bounds how long a set-video upload or view URL stays valid.
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrStorageDisabled is returned when no bucket is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// FileStorage holds the form-check videos attached to set logs. Clients talk to
// the bucket directly through presigned URLs; the engine only signs and deletes.
type FileStorage interface {
	// GeneratePresignedUploadURL signs a PUT for objectKey. The uploader must send
	// the same Content-Type header.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	// DeleteObject removes a replaced video. Missing keys are not an error on S3.
	DeleteObject(ctx context.Context, objectKey string) error
}
