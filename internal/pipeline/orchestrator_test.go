package pipeline_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetscan-backend/internal/extraction"
	"vetscan-backend/internal/models"
	"vetscan-backend/internal/pdfimages"
	"vetscan-backend/internal/pipeline"
	"vetscan-backend/internal/repository"
)

type fakeExtractor struct {
	calls   atomic.Int32
	extract func(attempt int32) (*extraction.RawExtraction, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, _ []byte) (*extraction.RawExtraction, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.extract(f.calls.Add(1))
}

type blockingExtractor struct{}

func (blockingExtractor) Extract(ctx context.Context, _ []byte) (*extraction.RawExtraction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeImages struct {
	calls  atomic.Int32
	result pdfimages.Result
	err    error
}

func (f *fakeImages) ExtractAndStore(_ context.Context, _, _ string, _ []byte) (pdfimages.Result, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func conf(v float64) *float64 { return &v }

func okExtraction() *extraction.RawExtraction {
	return &extraction.RawExtraction{Fields: []extraction.RawField{
		{Name: "nombre_paciente", Value: "Firulais", Confidence: conf(0.9)},
		{Name: "especie", Value: "Canino", Confidence: conf(0.95)},
	}}
}

func testConfig() pipeline.Config {
	return pipeline.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Budget:      time.Second,
	}
}

func createDocument(t *testing.T, store repository.Store) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:      uuid.New(),
		OwnerID: "user-1",
		Status:  models.StatusUploading,
	}
	require.NoError(t, store.Create(context.Background(), doc))
	return doc
}

func TestProcess_CompletesWithExtractedDataAndImages(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return okExtraction(), nil
	}}
	images := &fakeImages{result: pdfimages.Result{Images: []models.Image{
		{ID: uuid.New(), PageNumber: 1, Width: 900, Height: 700},
		{ID: uuid.New(), PageNumber: 2, Width: 640, Height: 480},
	}}}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.ExtractedData)
	require.NotNil(t, got.ExtractedData.Patient)
	assert.Equal(t, "Firulais", got.ExtractedData.Patient.Name)
	assert.Len(t, got.Images, 2)

	// completed implies the whole finalization group is set.
	require.NotNil(t, got.ConfidenceScore)
	assert.InDelta(t, 0.925, *got.ConfidenceScore, 1e-9)
	require.NotNil(t, got.ProcessingTimeMS)
	assert.GreaterOrEqual(t, *got.ProcessingTimeMS, int64(0))
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestProcess_PartialSuccessStillCompletes(t *testing.T) {
	store := repository.NewMemoryStore()
	// No patient block at all, findings only; one of three images failed.
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return &extraction.RawExtraction{Fields: []extraction.RawField{
			{Name: "hallazgos", Value: "Hígado aumentado"},
		}}, nil
	}}
	images := &fakeImages{result: pdfimages.Result{
		Images: []models.Image{
			{ID: uuid.New(), PageNumber: 1, Width: 900, Height: 700},
			{ID: uuid.New(), PageNumber: 2, Width: 800, Height: 600},
		},
		Diagnostics: []string{"page 3: upload failed: connection reset"},
	}}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.ExtractedData)
	assert.Nil(t, got.ExtractedData.Patient)
	require.NotNil(t, got.ExtractedData.Diagnosis)
	assert.Equal(t, []string{"Hígado aumentado"}, got.ExtractedData.Diagnosis.Findings)
	assert.Len(t, got.Images, 2)
	assert.Nil(t, got.ConfidenceScore, "vendor sent no confidence signal")
}

func TestProcess_PermanentErrorFailsWithoutRetry(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return nil, &extraction.ServiceError{StatusCode: 422, Message: "unsupported document", Transient: false}
	}}
	images := &fakeImages{}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	assert.Equal(t, int32(1), ext.calls.Load(), "permanent errors must short-circuit retries")

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "extraction failed")
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.ExtractedData)
	assert.Nil(t, got.ConfidenceScore)
	assert.Nil(t, got.ProcessingTimeMS)
}

func TestProcess_TransientErrorRetriesThenSucceeds(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(attempt int32) (*extraction.RawExtraction, error) {
		if attempt == 1 {
			return nil, &extraction.ServiceError{StatusCode: 503, Message: "unavailable", Transient: true}
		}
		return okExtraction(), nil
	}}
	images := &fakeImages{}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	assert.Equal(t, int32(2), ext.calls.Load())
	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestProcess_TransientErrorsExhaustRetries(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return nil, &extraction.ServiceError{StatusCode: 500, Message: "boom", Transient: true}
	}}
	images := &fakeImages{}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	assert.Equal(t, int32(3), ext.calls.Load(), "bounded by MaxAttempts")
	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "after 3 attempts")
}

func TestProcess_NoUsableSignalFails(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return &extraction.RawExtraction{Fields: []extraction.RawField{
			{Name: "telefono", Value: "555-0100"},
		}}, nil
	}}
	images := &fakeImages{}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no usable data")
}

func TestProcess_ImageExtractionFailureDoesNotFailDocument(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return okExtraction(), nil
	}}
	images := &fakeImages{err: assert.AnError}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, got.Images)
}

func TestProcess_BudgetExceededFailsWithTimeout(t *testing.T) {
	store := repository.NewMemoryStore()
	images := &fakeImages{}

	cfg := testConfig()
	cfg.Budget = 20 * time.Millisecond
	orch := pipeline.New(store, blockingExtractor{}, images, nil, cfg)
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "timed out")
	assert.NotNil(t, got.ProcessedAt)
}

func TestProcess_SecondInvocationIsNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return okExtraction(), nil
	}}
	images := &fakeImages{result: pdfimages.Result{Images: []models.Image{
		{ID: uuid.New(), PageNumber: 1, Width: 900, Height: 700},
	}}}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	first, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)

	// Duplicate trigger for the same document: the CAS on uploading loses
	// and the run exits without touching anything.
	require.NoError(t, orch.Process(context.Background(), doc, []byte("%PDF")))

	assert.Equal(t, int32(1), ext.calls.Load(), "extraction must not run twice")
	assert.Equal(t, int32(1), images.calls.Load(), "image extraction must not run twice")

	second, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, second.Status)
	assert.Len(t, second.Images, 1, "images must not be double-appended")
	assert.Equal(t, *first.ProcessingTimeMS, *second.ProcessingTimeMS)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "no write may happen on the duplicate run")
}

func TestProcess_ConcurrentInvocationsOneTerminalTransition(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := &fakeExtractor{extract: func(int32) (*extraction.RawExtraction, error) {
		return okExtraction(), nil
	}}
	images := &fakeImages{}

	orch := pipeline.New(store, ext, images, nil, testConfig())
	doc := createDocument(t, store)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- orch.Process(context.Background(), doc, []byte("%PDF"))
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	got, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, int32(1), ext.calls.Load(), "only the CAS winner may process")
}
