package models

import (
	"time"

	"github.com/google/uuid"
)

// Status values for a document's processing lifecycle. A document moves
// uploading -> processing -> completed or failed; the terminal states never
// transition again.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the aggregate for one uploaded ultrasound report.
type Document struct {
	ID            uuid.UUID      `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Status        string         `json:"status"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	OriginalFile  *OriginalFile  `json:"original_file,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
	Images        []Image        `json:"images"`

	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
	ProcessingTimeMS *int64   `json:"processing_time_ms,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// OriginalFile describes the uploaded PDF as stored in the uploads bucket.
type OriginalFile struct {
	BlobRef        string `json:"blob_ref"`
	Filename       string `json:"filename"`
	SizeBytes      int64  `json:"size_bytes"`
	MimeType       string `json:"mime_type"`
	ChecksumSHA256 string `json:"checksum_sha256,omitempty"`
}

// Image is one raster image extracted from the report's PDF. BlobRef is the
// storage key and must never leave the service; API responses carry only
// SignedURL, which is populated at read time and never persisted.
type Image struct {
	ID         uuid.UUID `json:"id"`
	PageNumber int       `json:"page_number"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	BlobRef    string    `json:"-"`
	SignedURL  string    `json:"signed_url,omitempty"`
}
