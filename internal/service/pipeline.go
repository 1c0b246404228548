package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/models"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	IdentifyConcurrency int
	Metrics             *metrics.Collector
	Logger              *slog.Logger
}

// Pipeline ties discovery, batch orchestration, completion tracking, and
// review/commit together over one knowledge store.
type Pipeline struct {
	store     KnowledgeStore
	exporter  RecordExporter
	batches   *BatchManager
	discovery *Discovery
	metrics   *metrics.Collector
	logger    *slog.Logger

	mu      sync.Mutex
	reviews map[int64]*Review
}

// NewPipeline creates a pipeline. exporter may be nil when no external
// mirror is configured.
func NewPipeline(store KnowledgeStore, collab Collaborators, exporter RecordExporter, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		exporter:  exporter,
		batches:   NewBatchManager(collab, opts.Metrics, logger),
		discovery: NewDiscovery(collab, collab, opts.IdentifyConcurrency, opts.Metrics, logger),
		metrics:   opts.Metrics,
		logger:    logger,
		reviews:   make(map[int64]*Review),
	}
}

// Batches returns the batch orchestrator.
func (p *Pipeline) Batches() *BatchManager { return p.batches }

// Discovery returns the discovery wrapper.
func (p *Pipeline) Discovery() *Discovery { return p.discovery }

// Metrics returns the pipeline's metrics collector (may be nil).
func (p *Pipeline) Metrics() *metrics.Collector { return p.metrics }

// HasExporter reports whether an external mirror is configured.
func (p *Pipeline) HasExporter() bool { return p.exporter != nil }

// Knowledge returns every stored record.
func (p *Pipeline) Knowledge(ctx context.Context) ([]models.ProductRecord, error) {
	start := time.Now()
	records, err := p.store.List(ctx)
	p.metrics.Since(metrics.OpStoreQuery, start)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	return records, nil
}

// Record returns the stored record with productID.
func (p *Pipeline) Record(ctx context.Context, productID string) (models.ProductRecord, error) {
	records, err := p.Knowledge(ctx)
	if err != nil {
		return models.ProductRecord{}, err
	}
	for _, r := range records {
		if r.ProductID == productID {
			return r, nil
		}
	}
	return models.ProductRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, productID)
}

// Tracker derives a completion tracker from the latest store and batch set.
func (p *Pipeline) Tracker(ctx context.Context) (Tracker, error) {
	records, err := p.Knowledge(ctx)
	if err != nil {
		return Tracker{}, err
	}
	return NewTracker(records, p.batches.List()), nil
}

// Launch creates and dispatches a research batch.
func (p *Pipeline) Launch(ctx context.Context, selections []Selection) (models.Batch, error) {
	return p.batches.Launch(ctx, selections)
}

// Dismiss removes a batch and any review opened for it.
func (p *Pipeline) Dismiss(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dismissLocked(id)
}

func (p *Pipeline) dismissLocked(id int64) bool {
	delete(p.reviews, id)
	return p.batches.Dismiss(id)
}

// review returns the review for a finished batch, opening it on first use.
func (p *Pipeline) review(id int64) (*Review, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reviewLocked(id)
}

// reviewLocked must be called with p.mu held, so a concurrent Dismiss
// cannot remove the batch between the lookup and opening the review.
func (p *Pipeline) reviewLocked(id int64) (*Review, error) {
	b, ok := p.batches.Get(id)
	if !ok {
		delete(p.reviews, id)
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	if !b.Finished() {
		return nil, fmt.Errorf("%w: %d is %s", ErrBatchNotFinished, id, b.OverallStatus())
	}

	r, ok := p.reviews[id]
	if !ok {
		r = NewReview(b)
		p.reviews[id] = r
	}
	return r, nil
}

// ReviewState partitions a finished batch's results against the latest store.
func (p *Pipeline) ReviewState(ctx context.Context, id int64) (ReviewState, error) {
	r, err := p.review(id)
	if err != nil {
		return ReviewState{}, err
	}
	known, err := p.Knowledge(ctx)
	if err != nil {
		return ReviewState{}, err
	}
	return r.State(known), nil
}

// Toggle flips the selection of a new result in a batch's review.
// Duplicates and unknown ids are left unchanged.
func (p *Pipeline) Toggle(ctx context.Context, id int64, productID string) (ReviewState, error) {
	r, err := p.review(id)
	if err != nil {
		return ReviewState{}, err
	}
	known, err := p.Knowledge(ctx)
	if err != nil {
		return ReviewState{}, err
	}
	state, _ := r.Toggle(known, productID)
	return state, nil
}

// SelectedJSON renders a review's current selection as JSON.
func (p *Pipeline) SelectedJSON(ctx context.Context, id int64) ([]byte, error) {
	r, err := p.review(id)
	if err != nil {
		return nil, err
	}
	known, err := p.Knowledge(ctx)
	if err != nil {
		return nil, err
	}
	return r.SelectedJSON(known)
}

func (p *Pipeline) selected(ctx context.Context, id int64) ([]models.ProductRecord, error) {
	r, err := p.review(id)
	if err != nil {
		return nil, err
	}
	known, err := p.Knowledge(ctx)
	if err != nil {
		return nil, err
	}
	return r.Selected(known), nil
}

// Commit merges the selected new results into the store and dismisses the
// batch. An empty selection returns ErrEmptySelection and keeps the batch.
func (p *Pipeline) Commit(ctx context.Context, id int64) (CommitResult, error) {
	res, _, err := p.commit(ctx, id)
	return res, err
}

// commit holds p.mu from the review lookup until the batch is dismissed, so
// records from a batch dismissed concurrently are never inserted and a
// batch is committed at most once.
func (p *Pipeline) commit(ctx context.Context, id int64) (CommitResult, []models.ProductRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.reviewLocked(id)
	if err != nil {
		return CommitResult{}, nil, err
	}
	known, err := p.Knowledge(ctx)
	if err != nil {
		return CommitResult{}, nil, err
	}
	selected := r.Selected(known)

	start := time.Now()
	res, err := commitSelection(ctx, p.store, id, selected)
	p.metrics.Since(metrics.OpStoreInsert, start)
	if err != nil {
		return CommitResult{}, nil, err
	}

	p.dismissLocked(id)
	p.logger.Info("batch committed", "batch_id", id, "added", len(res.Added), "skipped", len(res.Skipped))
	return res, selected, nil
}

// Export mirrors a review's current selection to dest without committing.
// A nil dest asks the exporter to pick or create one.
func (p *Pipeline) Export(ctx context.Context, id int64, dest *models.Destination) (models.Destination, error) {
	selected, err := p.selected(ctx, id)
	if err != nil {
		return models.Destination{}, err
	}
	if len(selected) == 0 {
		return models.Destination{}, ErrEmptySelection
	}
	return p.export(ctx, dest, selected)
}

func (p *Pipeline) export(ctx context.Context, dest *models.Destination, records []models.ProductRecord) (models.Destination, error) {
	if p.exporter == nil {
		return models.Destination{}, fmt.Errorf("%w: no exporter configured", ErrExportFailed)
	}

	start := time.Now()
	defer p.metrics.Since(metrics.OpExport, start)

	var d models.Destination
	if dest != nil {
		d = *dest
	} else {
		picked, err := p.exporter.PickOrCreateDestination(ctx)
		if err != nil {
			return models.Destination{}, errors.Join(ErrExportFailed, err)
		}
		d = picked
	}

	if err := p.exporter.ExportRecords(ctx, d, records); err != nil {
		return d, errors.Join(ErrExportFailed, err)
	}
	p.logger.Info("records exported", "destination", d.Name, "count", len(records))
	return d, nil
}

// FinalizeOptions controls Finalize.
type FinalizeOptions struct {
	Export      bool
	Destination *models.Destination
}

// FinalizeResult reports a commit and the optional export that followed it.
// ExportErr is set when the commit succeeded but the mirror failed.
type FinalizeResult struct {
	Commit      CommitResult       `json:"commit"`
	Destination models.Destination `json:"destination,omitempty"`
	Exported    bool               `json:"exported"`
	ExportErr   error              `json:"-"`
}

// Finalize commits a batch's selection and then, if requested, exports the
// same records. A failed export does not undo the commit.
func (p *Pipeline) Finalize(ctx context.Context, id int64, opts FinalizeOptions) (FinalizeResult, error) {
	res, selected, err := p.commit(ctx, id)
	if err != nil {
		return FinalizeResult{}, err
	}
	out := FinalizeResult{Commit: res}
	if !opts.Export {
		return out, nil
	}

	dest, err := p.export(ctx, opts.Destination, selected)
	out.Destination = dest
	if err != nil {
		p.logger.Warn("export after commit failed", "batch_id", id, "error", err)
		out.ExportErr = err
		return out, nil
	}
	out.Exported = true
	return out, nil
}
