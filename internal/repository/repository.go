package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"vetscan-backend/internal/models"
)

var (
	// ErrNotFound is returned when no document exists for the given id.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by UpdateStatus when the stored status does
	// not match the expected prior status. It means another invocation
	// already advanced the document and must not be treated as fatal.
	ErrConflict = errors.New("document status conflict")
)

// Patch carries the fields an orchestrator may set alongside a status
// transition. Nil fields are left untouched.
type Patch struct {
	OriginalFile     *models.OriginalFile
	ExtractedData    *models.ExtractedData
	Images           []models.Image
	ConfidenceScore  *float64
	ProcessingTimeMS *int64
	ProcessedAt      *time.Time
	ErrorMessage     *string
}

// ListFilter narrows List results. Zero values mean no filtering; Limit <= 0
// falls back to a default page size.
type ListFilter struct {
	Status string
	Limit  int
}

// Store persists documents. UpdateStatus is a compare-and-swap and is the
// single serialization point for concurrent orchestrator runs.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, patch Patch) error
	List(ctx context.Context, ownerID string, filter ListFilter) ([]models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const defaultListLimit = 20
