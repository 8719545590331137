package storage

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage is the object store holding exercise demo videos.
type FileStorage interface {
	// GeneratePresignedUploadURL returns a URL accepting a single PUT of an
	// object with the given content type.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	DeleteObject(ctx context.Context, objectKey string) error
}

// VideoObjectKey builds a fresh key for a demo video of exerciseID. The
// extension is derived from contentType when it is a known video type.
func VideoObjectKey(exerciseID, contentType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	} else if strings.HasPrefix(contentType, "video/") {
		ext = "." + strings.TrimPrefix(contentType, "video/")
	}
	return fmt.Sprintf("exercises/%s/%s%s", exerciseID, uuid.NewString(), ext)
}
