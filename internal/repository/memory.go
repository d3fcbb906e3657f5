package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"vetscan-backend/internal/models"
)

// MemoryStore is an in-memory Store used in tests and local development.
// It honors the same compare-and-swap contract as the Postgres store.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[uuid.UUID]*models.Document)}
}

func (s *MemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Images == nil {
		doc.Images = []models.Image{}
	}
	s.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, fromStatus, toStatus string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != fromStatus {
		return ErrConflict
	}

	doc.Status = toStatus
	if patch.OriginalFile != nil {
		of := *patch.OriginalFile
		doc.OriginalFile = &of
	}
	if patch.ExtractedData != nil {
		ed := *patch.ExtractedData
		doc.ExtractedData = &ed
	}
	if patch.Images != nil {
		doc.Images = append([]models.Image(nil), patch.Images...)
	}
	if patch.ConfidenceScore != nil {
		v := *patch.ConfidenceScore
		doc.ConfidenceScore = &v
	}
	if patch.ProcessingTimeMS != nil {
		v := *patch.ProcessingTimeMS
		doc.ProcessingTimeMS = &v
	}
	if patch.ProcessedAt != nil {
		v := *patch.ProcessedAt
		doc.ProcessedAt = &v
	}
	if patch.ErrorMessage != nil {
		v := *patch.ErrorMessage
		doc.ErrorMessage = &v
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string, filter ListFilter) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var docs []models.Document
	for _, doc := range s.docs {
		if doc.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		docs = append(docs, *cloneDocument(doc))
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func cloneDocument(doc *models.Document) *models.Document {
	out := *doc
	out.Images = append([]models.Image(nil), doc.Images...)
	if doc.OriginalFile != nil {
		of := *doc.OriginalFile
		out.OriginalFile = &of
	}
	if doc.ExtractedData != nil {
		ed := *doc.ExtractedData
		if doc.ExtractedData.Patient != nil {
			p := *doc.ExtractedData.Patient
			ed.Patient = &p
		}
		if doc.ExtractedData.Owner != nil {
			o := *doc.ExtractedData.Owner
			ed.Owner = &o
		}
		if doc.ExtractedData.Veterinarian != nil {
			v := *doc.ExtractedData.Veterinarian
			ed.Veterinarian = &v
		}
		if doc.ExtractedData.Diagnosis != nil {
			d := *doc.ExtractedData.Diagnosis
			d.Findings = append([]string(nil), doc.ExtractedData.Diagnosis.Findings...)
			ed.Diagnosis = &d
		}
		ed.Recommendations = append([]models.Recommendation(nil), doc.ExtractedData.Recommendations...)
		out.ExtractedData = &ed
	}
	if doc.ConfidenceScore != nil {
		v := *doc.ConfidenceScore
		out.ConfidenceScore = &v
	}
	if doc.ProcessingTimeMS != nil {
		v := *doc.ProcessingTimeMS
		out.ProcessingTimeMS = &v
	}
	if doc.ProcessedAt != nil {
		v := *doc.ProcessedAt
		out.ProcessedAt = &v
	}
	if doc.ErrorMessage != nil {
		v := *doc.ErrorMessage
		out.ErrorMessage = &v
	}
	return &out
}
