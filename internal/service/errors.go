package service

import "errors"

// Sentinel errors for pipeline operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSelections is returned when a batch launch carries no products.
	// Nothing is created; callers typically treat it as a no-op.
	ErrNoSelections = errors.New("no products selected")

	// ErrDuplicateProductInBatch indicates two selections share a product name.
	// The orchestrator never merges them silently.
	ErrDuplicateProductInBatch = errors.New("duplicate product in batch")

	// ErrInvalidSelection indicates a selection without a product name.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrBatchNotFound indicates the batch is not active (never created or dismissed).
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchNotFinished indicates a review was requested while jobs are still running.
	ErrBatchNotFinished = errors.New("batch not finished")

	// ErrEmptySelection is returned when committing with nothing selected.
	ErrEmptySelection = errors.New("nothing selected")

	// ErrRecordNotFound indicates no stored record has the requested product_id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmptyQuery is returned for a blank discovery query.
	ErrEmptyQuery = errors.New("empty query")

	// ErrExportFailed wraps failures of the external mirror.
	// It is reported separately from the knowledge store commit.
	ErrExportFailed = errors.New("export failed")
)
