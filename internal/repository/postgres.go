package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"vetscan-backend/internal/models"
)

// PostgresStore implements Store on top of PostgreSQL. Status transitions
// use a conditional UPDATE so that two concurrent orchestrator runs can never
// both perform the same transition.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	originalFile, err := marshalNullable(doc.OriginalFile)
	if err != nil {
		return fmt.Errorf("failed to encode original file: %w", err)
	}

	imagesJSON, err := encodeImages(doc.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (id, owner_id, status, original_file, images)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, doc.ID, doc.OwnerID, doc.Status, originalFile, imagesJSON).Scan(
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, error_message, original_file, extracted_data,
		       images, confidence_score, processing_time_ms, created_at, updated_at, processed_at
		FROM documents
		WHERE id = $1
	`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// UpdateStatus must keep the exact compare-and-swap semantics of
// MemoryStore.UpdateStatus: the in-memory store carries the contract tests,
// and TestPostgresStore_Contract replays them here when TEST_DATABASE_URL
// points at a database.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, patch Patch) error {
	extractedData, err := marshalNullable(patch.ExtractedData)
	if err != nil {
		return fmt.Errorf("failed to encode extracted data: %w", err)
	}
	originalFile, err := marshalNullable(patch.OriginalFile)
	if err != nil {
		return fmt.Errorf("failed to encode original file: %w", err)
	}

	var imagesJSON []byte
	if patch.Images != nil {
		imagesJSON, err = encodeImages(patch.Images)
		if err != nil {
			return fmt.Errorf("failed to encode images: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $3,
		    extracted_data = COALESCE($4, extracted_data),
		    original_file = COALESCE($5, original_file),
		    images = COALESCE($6, images),
		    confidence_score = COALESCE($7, confidence_score),
		    processing_time_ms = COALESCE($8, processing_time_ms),
		    processed_at = COALESCE($9, processed_at),
		    error_message = COALESCE($10, error_message),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, fromStatus, toStatus, extractedData, originalFile, imagesJSON,
		patch.ConfidenceScore, patch.ProcessingTimeMS, patch.ProcessedAt, patch.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a lost CAS race from a missing row.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check document existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, filter ListFilter) ([]models.Document, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, owner_id, status, error_message, original_file, extracted_data,
		       images, confidence_score, processing_time_ms, created_at, updated_at, processed_at
		FROM documents
		WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc              models.Document
		errorMessage     sql.NullString
		originalFile     []byte
		extractedData    []byte
		imagesJSON       []byte
		confidenceScore  sql.NullFloat64
		processingTimeMS sql.NullInt64
		processedAt      sql.NullTime
	)

	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Status, &errorMessage, &originalFile,
		&extractedData, &imagesJSON, &confidenceScore, &processingTimeMS,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		doc.ErrorMessage = &errorMessage.String
	}
	if confidenceScore.Valid {
		doc.ConfidenceScore = &confidenceScore.Float64
	}
	if processingTimeMS.Valid {
		doc.ProcessingTimeMS = &processingTimeMS.Int64
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}

	if len(originalFile) > 0 {
		doc.OriginalFile = &models.OriginalFile{}
		if err := json.Unmarshal(originalFile, doc.OriginalFile); err != nil {
			return nil, fmt.Errorf("failed to decode original file: %w", err)
		}
	}
	if len(extractedData) > 0 {
		doc.ExtractedData = &models.ExtractedData{}
		if err := json.Unmarshal(extractedData, doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data: %w", err)
		}
	}

	doc.Images, err = decodeImages(imagesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	return &doc, nil
}

// storedImage is the JSONB row shape for one image. models.Image hides
// BlobRef from JSON so storage keys never reach API responses, but the row
// must keep the key, so persistence gets its own representation. Signed URLs
// are minted per read and never stored.
type storedImage struct {
	ID         uuid.UUID `json:"id"`
	PageNumber int       `json:"page_number"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	BlobRef    string    `json:"blob_ref"`
}

func encodeImages(images []models.Image) ([]byte, error) {
	stored := make([]storedImage, len(images))
	for i, img := range images {
		stored[i] = storedImage{
			ID:         img.ID,
			PageNumber: img.PageNumber,
			Width:      img.Width,
			Height:     img.Height,
			Format:     img.Format,
			SizeBytes:  img.SizeBytes,
			BlobRef:    img.BlobRef,
		}
	}
	return json.Marshal(stored)
}

func decodeImages(data []byte) ([]models.Image, error) {
	images := []models.Image{}
	if len(data) == 0 {
		return images, nil
	}

	var stored []storedImage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	for _, img := range stored {
		images = append(images, models.Image{
			ID:         img.ID,
			PageNumber: img.PageNumber,
			Width:      img.Width,
			Height:     img.Height,
			Format:     img.Format,
			SizeBytes:  img.SizeBytes,
			BlobRef:    img.BlobRef,
		})
	}
	return images, nil
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
