package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vetscan-backend/internal/blobstore"
	"vetscan-backend/internal/middleware"
	"vetscan-backend/internal/models"
	"vetscan-backend/internal/pdfimages"
	"vetscan-backend/internal/repository"
)

// Processor kicks off background processing for a freshly uploaded document.
type Processor interface {
	Process(ctx context.Context, doc *models.Document, pdf []byte) error
}

type DocumentsHandler struct {
	store       repository.Store
	blobs       blobstore.Store
	processor   Processor
	maxFileSize int64
	signedTTL   time.Duration
}

func NewDocumentsHandler(store repository.Store, blobs blobstore.Store, processor Processor, maxFileSizeMB int, signedTTL time.Duration) *DocumentsHandler {
	return &DocumentsHandler{
		store:       store,
		blobs:       blobs,
		processor:   processor,
		maxFileSize: int64(maxFileSizeMB) << 20,
		signedTTL:   signedTTL,
	}
}

// Upload accepts a PDF report, stores it, creates the document record and
// schedules background processing. Validation happens before the document
// exists, so nothing is ever left in uploading because of bad input.
func (h *DocumentsHandler) Upload(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	file, err := formFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no file uploaded",
			Message: err.Error(),
		})
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "only PDF files are accepted"})
		return
	}
	if file.Size > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error: fmt.Sprintf("file size exceeds maximum allowed (%dMB)", h.maxFileSize>>20),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to open file",
			Message: err.Error(),
		})
		return
	}
	content, err := io.ReadAll(io.LimitReader(src, h.maxFileSize+1))
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to read file",
			Message: err.Error(),
		})
		return
	}
	if int64(len(content)) > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error: fmt.Sprintf("file size exceeds maximum allowed (%dMB)", h.maxFileSize>>20),
		})
		return
	}

	if err := pdfimages.Validate(content); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid PDF",
			Message: err.Error(),
		})
		return
	}

	documentID := uuid.New()
	checksum := sha256.Sum256(content)
	safeFilename := strings.NewReplacer("/", "_", "\\", "_").Replace(file.Filename)

	blobKey := fmt.Sprintf("%s/%s/%s", userID, documentID, safeFilename)
	blobRef, err := h.blobs.UploadPDF(c.Request.Context(), blobKey, content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to store file",
			Message: err.Error(),
		})
		return
	}

	doc := &models.Document{
		ID:      documentID,
		OwnerID: userID,
		Status:  models.StatusUploading,
		OriginalFile: &models.OriginalFile{
			BlobRef:        blobRef,
			Filename:       file.Filename,
			SizeBytes:      int64(len(content)),
			MimeType:       "application/pdf",
			ChecksumSHA256: hex.EncodeToString(checksum[:]),
		},
	}
	if err := h.store.Create(c.Request.Context(), doc); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create document",
			Message: err.Error(),
		})
		return
	}

	// One background run per document; duplicates are harmless because all
	// transitions go through the repository CAS.
	go func() {
		if err := h.processor.Process(context.Background(), doc, content); err != nil {
			slog.Error("document processing error",
				"document_id", doc.ID.String(), "error", err)
		}
	}()

	slog.Info("document upload accepted",
		"document_id", documentID.String(),
		"filename", file.Filename,
		"size_bytes", len(content),
		"owner_id", userID)

	c.JSON(http.StatusAccepted, models.UploadResponse{
		DocumentID: documentID.String(),
		Status:     models.StatusUploading,
		Message:    "Document uploaded successfully. Processing will begin shortly.",
	})
}

// Get returns a document in any status; images carry freshly signed URLs.
func (h *DocumentsHandler) Get(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	h.signImages(doc)
	c.JSON(http.StatusOK, doc)
}

// List returns the caller's documents, newest first, optionally filtered by
// status.
func (h *DocumentsHandler) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	filter := repository.ListFilter{Status: c.Query("status")}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be between 1 and 100"})
			return
		}
		filter.Limit = limit
	}

	docs, err := h.store.List(c.Request.Context(), userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list documents",
			Message: err.Error(),
		})
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	for i := range docs {
		h.signImages(&docs[i])
	}

	c.JSON(http.StatusOK, models.DocumentListResponse{
		Documents:  docs,
		TotalCount: len(docs),
	})
}

// Images returns a document's extracted images with signed URLs.
func (h *DocumentsHandler) Images(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	h.signImages(doc)
	c.JSON(http.StatusOK, models.ImagesResponse{
		DocumentID: doc.ID.String(),
		Images:     doc.Images,
		Count:      len(doc.Images),
	})
}

// Delete removes a document and every blob stored for it.
func (h *DocumentsHandler) Delete(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	if err := h.blobs.DeleteDocumentFiles(c.Request.Context(), doc.OwnerID, doc.ID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to delete document files",
			Message: err.Error(),
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), doc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to delete document",
			Message: err.Error(),
		})
		return
	}

	slog.Info("document deleted", "document_id", doc.ID.String(), "owner_id", doc.OwnerID)
	c.Status(http.StatusNoContent)
}

// ownedDocument loads the path document and enforces ownership. Cross-owner
// access gets 404, not 403, to avoid leaking document existence.
func (h *DocumentsHandler) ownedDocument(c *gin.Context) (*models.Document, bool) {
	userID, ok := requestUserID(c)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid document id"})
		return nil, false
	}

	doc, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "document not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to get document",
			Message: err.Error(),
		})
		return nil, false
	}
	if doc.OwnerID != userID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "document not found"})
		return nil, false
	}

	return doc, true
}

func (h *DocumentsHandler) signImages(doc *models.Document) {
	for i := range doc.Images {
		url, err := h.blobs.SignedImageURL(doc.Images[i].BlobRef, h.signedTTL)
		if err != nil {
			slog.Warn("failed to sign image url",
				"document_id", doc.ID.String(),
				"blob_ref", doc.Images[i].BlobRef,
				"error", err)
			continue
		}
		doc.Images[i].SignedURL = url
	}
}

func requestUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	userID, ok := value.(string)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid user id"})
		return "", false
	}
	return userID, true
}

func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	for _, field := range []string{"file", "document", "pdf"} {
		if file, err := c.FormFile(field); err == nil {
			return file, nil
		}
	}
	return nil, fmt.Errorf("expected a multipart file field named file, document or pdf")
}
