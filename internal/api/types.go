package api

import "time"

// ImportAcceptedResponse is returned when an upload or cancel is accepted.
type ImportAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// RejectedSampleResponse is one retained row rejection.
type RejectedSampleResponse struct {
	Line   int64  `json:"line"`
	Reason string `json:"reason"`
}

// ImportStatusResponse is the progress snapshot for one import job.
// TotalRows is null until the importer has seen the end of the file.
type ImportStatusResponse struct {
	ID              string                   `json:"id"`
	Status          string                   `json:"status"`
	TotalRows       *int64                   `json:"total_rows"`
	ProcessedRows   int64                    `json:"processed_rows"`
	Created         int64                    `json:"created"`
	Updated         int64                    `json:"updated"`
	Rejected        int64                    `json:"rejected"`
	RejectedSamples []RejectedSampleResponse `json:"rejected_samples"`
	Reason          string                   `json:"reason,omitempty"`
	StartedAt       string                   `json:"started_at,omitempty"`
	FinishedAt      string                   `json:"finished_at,omitempty"`
	CreatedAt       string                   `json:"created_at"`
}

type CreateProductRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"` // default true
}

type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active"`
}

type ProductResponse struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type CreateWebhookRequest struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	EventKind string `json:"event_kind"`
	Secret    string `json:"secret,omitempty"`
	Active    *bool  `json:"active,omitempty"` // default true
}

// WebhookResponse never echoes the secret.
type WebhookResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	EventKind string `json:"event_kind"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListWebhooksResponse struct {
	Webhooks []WebhookResponse `json:"webhooks"`
}

// WebhookTestResponse reports the raw outcome of a single test delivery.
// StatusCode is 0 when the request never reached the endpoint.
type WebhookTestResponse struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
