// Package api defines the JSON payloads exchanged between prodscout-server
// and its clients.
package api

import (
	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/models"
	"github.com/raphaelgruber/prodscout/internal/service"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes for ErrorResponse.Code.
const (
	CodeBatchNotFound    = "batch_not_found"
	CodeBatchNotFinished = "batch_not_finished"
	CodeRecordNotFound   = "record_not_found"
	CodeEmptySelection   = "empty_selection"
	CodeInvalidRequest   = "invalid_request"
	CodeBackend          = "backend_error"
	CodeExportFailed     = "export_failed"
)

type DiscoverRequest struct {
	Query string `json:"query"`
}

type DiscoverResponse struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories"`
}

type IdentifyRequest struct {
	Categories []string `json:"categories"`
}

// Candidate is one identified product and whether it is already stored or
// reserved by an active batch.
type Candidate struct {
	Name      string `json:"name"`
	Accounted bool   `json:"accounted"`
}

// CategoryCandidates lists a category's identified products.
// Complete is true when every candidate is accounted for.
type CategoryCandidates struct {
	Category string      `json:"category"`
	Complete bool        `json:"complete"`
	Products []Candidate `json:"products"`
}

type IdentifyResponse struct {
	Categories []CategoryCandidates `json:"categories"`
}

// Identified converts the response back into a category -> names map.
func (r IdentifyResponse) Identified() map[string][]string {
	out := make(map[string][]string, len(r.Categories))
	for _, c := range r.Categories {
		names := make([]string, len(c.Products))
		for i, p := range c.Products {
			names[i] = p.Name
		}
		out[c.Category] = names
	}
	return out
}

type LaunchRequest struct {
	Selections []service.Selection `json:"selections"`
}

// BatchView is a batch snapshot plus its derived status and counts.
type BatchView struct {
	models.Batch
	Status models.Status      `json:"status"`
	Counts models.BatchCounts `json:"counts"`
}

// NewBatchView derives the status fields for b.
func NewBatchView(b models.Batch) BatchView {
	return BatchView{Batch: b, Status: b.OverallStatus(), Counts: b.Counts()}
}

type BatchList struct {
	Batches []BatchView `json:"batches"`
}

type ToggleRequest struct {
	ProductID string `json:"product_id"`
}

// CommitRequest finalizes a batch. With Export set the committed records are
// also mirrored; a nil Destination lets the server pick its default.
type CommitRequest struct {
	Export      bool                `json:"export"`
	Destination *models.Destination `json:"destination,omitempty"`
}

// CommitResponse reports a finalize. ExportError is set when the commit
// succeeded and the mirror did not.
type CommitResponse struct {
	service.FinalizeResult
	ExportError string `json:"export_error,omitempty"`
}

type ExportRequest struct {
	Destination *models.Destination `json:"destination,omitempty"`
}

type ExportResponse struct {
	Destination models.Destination `json:"destination"`
}

type KnowledgeResponse struct {
	Records []models.ProductRecord `json:"records"`
	Total   int                    `json:"total"`
}

// StatsResponse is the runtime snapshot served by /api/stats.
type StatsResponse struct {
	metrics.Snapshot
	Records       int  `json:"records"`
	ActiveBatches int  `json:"active_batches"`
	Exporter      bool `json:"exporter"`
}
