package pdfimages

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"vetscan-backend/internal/blobstore"
	"vetscan-backend/internal/models"
)

// Extractor pulls embedded raster images out of a report PDF and stores the
// ones worth keeping. Images below MinAreaPx are treated as decorative
// (logos, separators) and dropped; images larger than MaxDimension on either
// side are downscaled and re-encoded as JPEG before upload.
type Extractor struct {
	blobs        blobstore.Store
	minAreaPx    int
	maxDimension int
}

// Result lists the stored images in page order plus any per-image failures.
// Individual failures never abort extraction.
type Result struct {
	Images      []models.Image
	Diagnostics []string
}

func New(blobs blobstore.Store, minAreaPx, maxDimension int) *Extractor {
	return &Extractor{
		blobs:        blobs,
		minAreaPx:    minAreaPx,
		maxDimension: maxDimension,
	}
}

// Validate checks that data is a readable, non-empty PDF. It runs before a
// document is created, so malformed uploads are rejected synchronously.
func Validate(data []byte) error {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return fmt.Errorf("missing PDF header")
	}

	conf := relaxedConfig()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("unreadable PDF: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return fmt.Errorf("unreadable PDF: %w", err)
	}
	if pages == 0 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}

// ExtractAndStore enumerates embedded images page by page, in embedding
// order within each page, and uploads survivors to the images bucket under
// {owner}/{document}/image-{seq}.{ext}.
func (e *Extractor) ExtractAndStore(ctx context.Context, ownerID, documentID string, pdf []byte) (Result, error) {
	var result Result

	pages, err := api.ExtractImagesRaw(bytes.NewReader(pdf), nil, relaxedConfig())
	if err != nil {
		return result, fmt.Errorf("failed to parse PDF images: %w", err)
	}

	seq := 0
	for pageIdx, pageImages := range pages {
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			raw := pageImages[objNr]
			pageNr := raw.PageNr
			if pageNr <= 0 {
				pageNr = pageIdx + 1
			}

			img, ok := e.prepare(raw, pageNr, &result)
			if !ok {
				continue
			}

			key := fmt.Sprintf("%s/%s/image-%03d.%s", ownerID, documentID, seq, img.Format)
			ref, err := e.blobs.UploadImage(ctx, key, img.data, img.contentType)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics,
					fmt.Sprintf("page %d: upload failed: %v", pageNr, err))
				slog.Warn("image upload failed",
					"document_id", documentID, "page", pageNr, "error", err)
				seq++
				continue
			}

			img.Image.BlobRef = ref
			result.Images = append(result.Images, img.Image)
			seq++
		}
	}

	return result, nil
}

type preparedImage struct {
	models.Image
	data        []byte
	contentType string
}

// prepare decodes one raw image, applies the area filter, and downscales
// oversized images. Returns ok=false when the image is dropped, adding a
// diagnostic only for real failures.
func (e *Extractor) prepare(raw model.Image, pageNr int, result *Result) (preparedImage, bool) {
	var out preparedImage

	data, err := io.ReadAll(raw)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("page %d: failed to read image stream: %v", pageNr, err))
		return out, false
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("page %d: failed to decode image: %v", pageNr, err))
		return out, false
	}

	if cfg.Width*cfg.Height < e.minAreaPx {
		return out, false
	}

	width, height := cfg.Width, cfg.Height
	if e.maxDimension > 0 && (width > e.maxDimension || height > e.maxDimension) {
		decoded, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("page %d: failed to decode oversized image: %v", pageNr, err))
			return out, false
		}
		resized := imaging.Fit(decoded, e.maxDimension, e.maxDimension, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("page %d: failed to re-encode image: %v", pageNr, err))
			return out, false
		}
		data = buf.Bytes()
		width = resized.Bounds().Dx()
		height = resized.Bounds().Dy()
		format = "jpeg"
	}

	out = preparedImage{
		Image: models.Image{
			ID:         uuid.New(),
			PageNumber: pageNr,
			Width:      width,
			Height:     height,
			Format:     format,
			SizeBytes:  int64(len(data)),
		},
		data:        data,
		contentType: contentTypeFor(format),
	}
	return out, true
}

func contentTypeFor(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
