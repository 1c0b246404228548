// Package service provides the research pipeline: batch orchestration,
// completion tracking, discovery selections, and review/commit of results.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/models"
)

// Selection names one product to research.
type Selection struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

// EventType classifies a change to the active batch set.
type EventType string

const (
	EventBatchCreated   EventType = "batch_created"
	EventJobUpdated     EventType = "job_updated"
	EventBatchDismissed EventType = "batch_dismissed"
)

// BatchEvent describes one change to the active batch set.
type BatchEvent struct {
	Type    EventType     `json:"type"`
	BatchID int64         `json:"batch_id"`
	Job     *models.Job   `json:"job,omitempty"`
	Status  models.Status `json:"status"`
}

// batch is the manager's mutable record of one active batch.
// Jobs are addressed by product name through index.
type batch struct {
	id         int64
	jobs       []models.Job
	index      map[string]int
	createdAt  time.Time
	dispatched bool
}

func (b *batch) snapshot() models.Batch {
	jobs := make([]models.Job, len(b.jobs))
	for i, j := range b.jobs {
		jobs[i] = copyJob(j)
	}
	return models.Batch{ID: b.id, Jobs: jobs, CreatedAt: b.createdAt}
}

func copyJob(j models.Job) models.Job {
	if j.Result != nil {
		r := *j.Result
		j.Result = &r
	}
	return j
}

// BatchManager owns the set of active batches and the lifecycle of their jobs.
//
// Every job update is a patch applied under the lock to the current state of
// the batch, addressed by (batch id, product name). Updates for a batch that is
// no longer active are discarded.
type BatchManager struct {
	mu      sync.RWMutex
	batches map[int64]*batch
	nextID  int64

	researcher ProductResearcher
	metrics    *metrics.Collector
	logger     *slog.Logger

	subMu sync.Mutex
	subs  map[chan BatchEvent]struct{}

	inflight sync.WaitGroup
}

// NewBatchManager creates a batch manager that researches products with researcher.
func NewBatchManager(researcher ProductResearcher, mc *metrics.Collector, logger *slog.Logger) *BatchManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchManager{
		batches:    make(map[int64]*batch),
		nextID:     1,
		researcher: researcher,
		metrics:    mc,
		logger:     logger,
		subs:       make(map[chan BatchEvent]struct{}),
	}
}

// CreateBatch registers a new active batch with one pending job per selection.
// Returns ErrNoSelections for an empty request and ErrDuplicateProductInBatch
// when two selections share a product name; no batch is created in either case.
func (m *BatchManager) CreateBatch(selections []Selection) (models.Batch, error) {
	if len(selections) == 0 {
		return models.Batch{}, ErrNoSelections
	}

	jobs := make([]models.Job, 0, len(selections))
	index := make(map[string]int, len(selections))
	for _, sel := range selections {
		if sel.ProductName == "" {
			return models.Batch{}, fmt.Errorf("%w: product name required", ErrInvalidSelection)
		}
		if _, dup := index[sel.ProductName]; dup {
			return models.Batch{}, fmt.Errorf("%w: %q", ErrDuplicateProductInBatch, sel.ProductName)
		}
		index[sel.ProductName] = len(jobs)
		jobs = append(jobs, models.Job{
			ProductName: sel.ProductName,
			Category:    sel.Category,
			Status:      models.StatusPending,
		})
	}

	m.mu.Lock()
	b := &batch{
		id:        m.nextID,
		jobs:      jobs,
		index:     index,
		createdAt: time.Now(),
	}
	m.nextID++
	m.batches[b.id] = b
	snap := b.snapshot()
	m.mu.Unlock()

	m.logger.Info("batch created", "batch_id", snap.ID, "jobs", len(jobs))
	m.publish(BatchEvent{Type: EventBatchCreated, BatchID: snap.ID, Status: snap.OverallStatus()})
	return snap, nil
}

// Dispatch moves every pending job of the batch to in-progress and starts one
// research call per job, all concurrently. A batch is dispatched at most once;
// later calls are no-ops.
//
// Cancellation of ctx does not interrupt research calls: they run detached
// (keeping ctx values) and only dismissal discards their results.
func (m *BatchManager) Dispatch(ctx context.Context, id int64) error {
	m.mu.Lock()
	b, ok := m.batches[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	if b.dispatched {
		m.mu.Unlock()
		return nil
	}
	b.dispatched = true

	now := time.Now()
	started := make([]models.Job, 0, len(b.jobs))
	for i := range b.jobs {
		if b.jobs[i].Status != models.StatusPending {
			continue
		}
		b.jobs[i].Status = models.StatusInProgress
		b.jobs[i].StartedAt = &now
		started = append(started, b.jobs[i])
	}
	status := models.OverallStatus(b.jobs)
	m.inflight.Add(len(started))
	m.mu.Unlock()

	m.logger.Info("batch dispatched", "batch_id", id, "jobs", len(started))

	bgCtx := context.WithoutCancel(ctx)
	for _, job := range started {
		m.publish(BatchEvent{Type: EventJobUpdated, BatchID: id, Job: &job, Status: status})
		go m.run(bgCtx, id, job)
	}
	return nil
}

// Launch creates a batch and dispatches it.
func (m *BatchManager) Launch(ctx context.Context, selections []Selection) (models.Batch, error) {
	created, err := m.CreateBatch(selections)
	if err != nil {
		return models.Batch{}, err
	}
	if err := m.Dispatch(ctx, created.ID); err != nil {
		return models.Batch{}, err
	}
	snap, ok := m.Get(created.ID)
	if !ok {
		// Dismissed between dispatch and read.
		return created, nil
	}
	return snap, nil
}

// run performs one research call and applies its outcome.
func (m *BatchManager) run(ctx context.Context, batchID int64, job models.Job) {
	defer m.inflight.Done()

	start := time.Now()
	record, err := m.research(ctx, job)
	if err != nil {
		m.metrics.Since(metrics.OpResearchError, start)
		m.logger.Warn("research failed",
			"batch_id", batchID, "product", job.ProductName, "category", job.Category, "error", err)
	} else {
		m.metrics.Since(metrics.OpResearch, start)
	}

	m.resolve(batchID, job.ProductName, record, err)
}

func (m *BatchManager) research(ctx context.Context, job models.Job) (record *models.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("research call panicked", "product", job.ProductName, "panic", r)
			record, err = nil, fmt.Errorf("internal panic: %v", r)
		}
	}()

	record, err = m.researcher.ResearchProduct(ctx, job.ProductName, job.Category)
	if err == nil && record == nil {
		err = errors.New("research returned no record")
	}
	return record, err
}

// resolve patches the job's terminal state into the current batch.
// Late results for dismissed batches and repeated resolutions are ignored.
func (m *BatchManager) resolve(batchID int64, productName string, record *models.ProductRecord, err error) {
	m.mu.Lock()
	b, ok := m.batches[batchID]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("discarding result for dismissed batch", "batch_id", batchID, "product", productName)
		return
	}
	i, ok := b.index[productName]
	if !ok || b.jobs[i].Status.Terminal() {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	job := &b.jobs[i]
	job.CompletedAt = &now
	if err != nil {
		job.Status = models.StatusError
		job.Error = err.Error()
	} else {
		r := *record
		job.Status = models.StatusComplete
		job.Result = &r
	}
	updated := copyJob(*job)
	status := models.OverallStatus(b.jobs)
	m.mu.Unlock()

	if status.Terminal() {
		m.logger.Info("batch finished", "batch_id", batchID, "status", status)
	}
	m.publish(BatchEvent{Type: EventJobUpdated, BatchID: batchID, Job: &updated, Status: status})
}

// Dismiss removes the batch from the active set regardless of its status.
// In-flight research calls keep running; their results are discarded.
// Returns false if the batch was not active.
func (m *BatchManager) Dismiss(id int64) bool {
	m.mu.Lock()
	_, ok := m.batches[id]
	delete(m.batches, id)
	m.mu.Unlock()

	if ok {
		m.logger.Info("batch dismissed", "batch_id", id)
		m.publish(BatchEvent{Type: EventBatchDismissed, BatchID: id})
	}
	return ok
}

// Get returns a snapshot of an active batch.
func (m *BatchManager) Get(id int64) (models.Batch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[id]
	if !ok {
		return models.Batch{}, false
	}
	return b.snapshot(), true
}

// List returns snapshots of all active batches, oldest first.
func (m *BatchManager) List() []models.Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, b.snapshot())
	}
	slices.SortFunc(out, func(a, b models.Batch) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// OverallStatus derives the current status of an active batch.
func (m *BatchManager) OverallStatus(id int64) (models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	return models.OverallStatus(b.jobs), nil
}

// Subscribe returns a channel of batch events and a function to cancel the
// subscription. Events are dropped for subscribers whose buffer is full.
func (m *BatchManager) Subscribe(buffer int) (<-chan BatchEvent, func()) {
	ch := make(chan BatchEvent, buffer)

	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (m *BatchManager) publish(ev BatchEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("dropping batch event for slow subscriber", "batch_id", ev.BatchID, "type", ev.Type)
		}
	}
}

// Wait blocks until every dispatched research call has returned.
// Hung calls block Wait indefinitely.
func (m *BatchManager) Wait() {
	m.inflight.Wait()
}
