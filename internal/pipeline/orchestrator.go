package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vetscan-backend/internal/extraction"
	"vetscan-backend/internal/models"
	"vetscan-backend/internal/normalizer"
	"vetscan-backend/internal/pdfimages"
	"vetscan-backend/internal/repository"
)

// Config is the explicit retry/budget policy for a processing run.
type Config struct {
	// MaxAttempts bounds extraction-service calls per run, first try
	// included.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per attempt up to
	// MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Budget is the wall-clock limit for one run. A run that exceeds it
	// fails the document with a timeout error and is not retried.
	Budget time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Budget:      2 * time.Minute,
	}
}

// ImageExtractor is the slice of pdfimages the orchestrator needs.
type ImageExtractor interface {
	ExtractAndStore(ctx context.Context, ownerID, documentID string, pdf []byte) (pdfimages.Result, error)
}

// Orchestrator drives one uploaded document through
// processing -> completed/failed. Runs for distinct documents are
// independent; duplicate runs for the same document are safe because every
// transition goes through the repository's compare-and-swap, so at most one
// run performs each transition and the loser backs off quietly.
type Orchestrator struct {
	store      repository.Store
	extractor  extraction.Service
	images     ImageExtractor
	normalizer *normalizer.Normalizer
	cfg        Config
}

func New(store repository.Store, extractor extraction.Service, images ImageExtractor, norm *normalizer.Normalizer, cfg Config) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if norm == nil {
		norm = normalizer.New(nil)
	}
	return &Orchestrator{
		store:      store,
		extractor:  extractor,
		images:     images,
		normalizer: norm,
		cfg:        cfg,
	}
}

// Process runs the full pipeline for one document. The document must have
// been created with its PDF already durably stored.
func (o *Orchestrator) Process(ctx context.Context, doc *models.Document, pdf []byte) error {
	log := slog.With("document_id", doc.ID.String())
	start := time.Now()

	if o.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Budget)
		defer cancel()
	}

	err := o.store.UpdateStatus(ctx, doc.ID, models.StatusUploading, models.StatusProcessing, repository.Patch{})
	if errors.Is(err, repository.ErrConflict) {
		// Another run already advanced this document.
		log.Debug("document already in processing or beyond, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to start processing: %w", err)
	}
	log.Info("processing started")

	var (
		raw        *extraction.RawExtraction
		extractErr error
		imgResult  pdfimages.Result
	)

	// Field extraction and image extraction have no ordering dependency;
	// both must settle before finalization either way.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, extractErr = o.extractWithRetry(gctx, pdf)
		return nil
	})
	g.Go(func() error {
		var err error
		imgResult, err = o.images.ExtractAndStore(gctx, doc.OwnerID, doc.ID.String(), pdf)
		if err != nil {
			// A broken image layer alone never fails the document.
			log.Warn("image extraction failed", "error", err)
		}
		return nil
	})
	g.Wait()

	for _, diag := range imgResult.Diagnostics {
		log.Warn("image extraction diagnostic", "detail", diag)
	}

	if ctx.Err() != nil {
		return o.fail(ctx, doc.ID, log,
			fmt.Sprintf("processing timed out after %s", o.cfg.Budget))
	}

	if extractErr != nil {
		if errors.Is(extractErr, context.DeadlineExceeded) {
			return o.fail(ctx, doc.ID, log,
				fmt.Sprintf("processing timed out after %s", o.cfg.Budget))
		}
		return o.fail(ctx, doc.ID, log,
			fmt.Sprintf("extraction failed: %v", extractErr))
	}

	result := o.normalizer.Normalize(raw)
	if !normalizer.HasIdentitySignal(result.Data) {
		return o.fail(ctx, doc.ID, log, "no usable data extracted from document")
	}

	now := time.Now().UTC()
	elapsed := time.Since(start).Milliseconds()
	images := imgResult.Images
	if images == nil {
		images = []models.Image{}
	}

	// Terminal writes run on a detached context: the decision is already
	// made and must be recorded even if the budget expires mid-write.
	err = o.store.UpdateStatus(context.WithoutCancel(ctx), doc.ID, models.StatusProcessing, models.StatusCompleted, repository.Patch{
		ExtractedData:    &result.Data,
		Images:           images,
		ConfidenceScore:  result.Confidence,
		ProcessingTimeMS: &elapsed,
		ProcessedAt:      &now,
	})
	if errors.Is(err, repository.ErrConflict) {
		log.Debug("document already finalized by another run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}

	log.Info("processing completed",
		"mapped_fields", result.MappedFields,
		"images", len(images),
		"processing_time_ms", elapsed)
	return nil
}

// extractWithRetry calls the extraction service with bounded exponential
// backoff. Permanent errors and context cancellation short-circuit.
func (o *Orchestrator) extractWithRetry(ctx context.Context, pdf []byte) (*extraction.RawExtraction, error) {
	var lastErr error

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		raw, err := o.extractor.Extract(ctx, pdf)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !extraction.IsTransient(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == o.cfg.MaxAttempts {
			break
		}

		delay := o.backoff(attempt)
		slog.Warn("extraction attempt failed, retrying",
			"attempt", attempt, "max_attempts", o.cfg.MaxAttempts,
			"delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("extraction failed after %d attempts: %w", o.cfg.MaxAttempts, lastErr)
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.cfg.BaseDelay << (attempt - 1)
	if o.cfg.MaxDelay > 0 && delay > o.cfg.MaxDelay {
		delay = o.cfg.MaxDelay
	}
	return delay
}

// fail performs the terminal processing -> failed transition. The write uses
// a context detached from the run budget so an expired budget cannot block
// recording its own timeout.
func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, log *slog.Logger, message string) error {
	now := time.Now().UTC()
	err := o.store.UpdateStatus(context.WithoutCancel(ctx), id,
		models.StatusProcessing, models.StatusFailed, repository.Patch{
			ErrorMessage: &message,
			ProcessedAt:  &now,
		})
	if errors.Is(err, repository.ErrConflict) {
		log.Debug("document already finalized by another run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}

	log.Warn("processing failed", "error_message", message)
	return nil
}
