package models

type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type DocumentListResponse struct {
	Documents  []Document `json:"documents"`
	TotalCount int        `json:"total_count"`
}

type ImagesResponse struct {
	DocumentID string  `json:"document_id"`
	Images     []Image `json:"images"`
	Count      int     `json:"count"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
