package server

import "time"

// SaveDocumentRequest is the save hook payload for PUT /documents/{id}.
type SaveDocumentRequest struct {
	Type    string `json:"type" example:"post"`
	Content string `json:"content" example:"<h1>Title</h1><p>Body</p>"`
	// PublishedAt is the original publish time. Omit to keep the stored one.
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// RunDetectionRequest scopes a batch run. An empty list runs every document.
type RunDetectionRequest struct {
	IDs []string `json:"ids" example:"[\"post-1\",\"post-2\"]"`
}

// RunDetectionResponse summarizes a batch run. Count is the number of
// documents that produced at least one warning.
type RunDetectionResponse struct {
	Count     int    `json:"count" example:"3"`
	Processed int    `json:"processed" example:"40"`
	Skipped   int    `json:"skipped" example:"2"`
	Failed    int    `json:"failed" example:"1"`
	RunID     string `json:"run_id"`
}

// MarkIntentionalResponse reports how many warnings were acknowledged.
type MarkIntentionalResponse struct {
	Acknowledged int `json:"acknowledged" example:"2"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
