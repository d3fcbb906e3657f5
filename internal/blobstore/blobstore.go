package blobstore

import (
	"context"
	"time"
)

// Store is the object-storage contract the pipeline depends on. Refs are
// opaque storage keys scoped to the implementation's buckets; callers never
// hand raw keys to API consumers, only signed URLs.
type Store interface {
	// UploadPDF stores the original report in the uploads bucket and
	// returns its blob ref.
	UploadPDF(ctx context.Context, key string, data []byte) (string, error)

	// UploadImage stores an extracted image in the images bucket and
	// returns its blob ref.
	UploadImage(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// DownloadPDF fetches the original report bytes by ref.
	DownloadPDF(ctx context.Context, ref string) ([]byte, error)

	// SignedImageURL returns a time-limited read URL for an image ref.
	SignedImageURL(ref string, ttl time.Duration) (string, error)

	// DeleteDocumentFiles removes every object stored under the given
	// owner/document prefix, in both buckets.
	DeleteDocumentFiles(ctx context.Context, ownerID, documentID string) error
}
