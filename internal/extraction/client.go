package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the OCR/entity-extraction service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract submits PDF bytes and returns the vendor's raw field extraction.
// Network failures and 408/429/5xx responses come back as transient
// ServiceErrors; other non-2xx responses are permanent.
func (c *Client) Extract(ctx context.Context, pdf []byte) (*RawExtraction, error) {
	url := c.baseURL + "/v1/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pdf))
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("failed to build request: %v", err), Transient: false}
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection resets, DNS failures: all worth retrying.
		return nil, &ServiceError{Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("failed to read response: %v", err), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 200),
			Transient:  isRetryableStatus(resp.StatusCode),
		}
	}

	var raw RawExtraction
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			Transient:  false,
		}
	}

	return &raw, nil
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return statusCode >= 500
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
