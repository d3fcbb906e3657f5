package extraction

import (
	"context"
	"errors"
	"fmt"
)

// RawField is one vendor field as returned by the extraction service. Field
// names are vendor-specific (and bilingual in practice); only the normalizer
// interprets them. Confidence is nil when the vendor reports none.
type RawField struct {
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// RawExtraction is the untouched extraction-service output. Field order is
// the vendor's appearance order and must be preserved downstream.
type RawExtraction struct {
	Fields []RawField `json:"fields"`
}

// Service produces raw entity extraction from PDF bytes.
type Service interface {
	Extract(ctx context.Context, pdf []byte) (*RawExtraction, error)
}

// ServiceError classifies extraction-service failures. Transient errors
// (timeouts, throttling, 5xx) may be retried; permanent errors must not be.
type ServiceError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("extraction service: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("extraction service: %s", e.Message)
}

// IsTransient reports whether err is a retryable extraction-service failure.
func IsTransient(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Transient
	}
	return false
}
