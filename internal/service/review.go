package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// Partition splits batch results into records not yet known and records
// whose product_id already exists in the knowledge store.
type Partition struct {
	New        []models.ProductRecord `json:"new"`
	Duplicates []models.ProductRecord `json:"duplicates"`
}

// PartitionResults partitions results against the known records.
// Every result lands in exactly one list, keeping input order.
func PartitionResults(results, known []models.ProductRecord) Partition {
	ids := make(map[string]struct{}, len(known))
	for _, r := range known {
		ids[r.ProductID] = struct{}{}
	}

	p := Partition{
		New:        make([]models.ProductRecord, 0, len(results)),
		Duplicates: make([]models.ProductRecord, 0),
	}
	for _, r := range results {
		if _, ok := ids[r.ProductID]; ok {
			p.Duplicates = append(p.Duplicates, r)
		} else {
			p.New = append(p.New, r)
		}
	}
	return p
}

// ReviewState is the user-facing view of a review at one point in time.
type ReviewState struct {
	BatchID    int64                  `json:"batch_id"`
	New        []models.ProductRecord `json:"new"`
	Duplicates []models.ProductRecord `json:"duplicates"`
	Selected   []string               `json:"selected"`
	Errored    []models.Job           `json:"errored,omitempty"`
}

// Review curates the successful results of one finished batch before commit.
//
// New results start selected. The review only remembers which ids the user
// deselected, so the partition can be recomputed against the latest store at
// every call without losing those choices. A result that became a duplicate
// in the meantime is never selectable.
type Review struct {
	batchID int64
	results []models.ProductRecord
	errored []models.Job

	mu         sync.Mutex
	deselected map[string]bool
}

// NewReview starts a review over a batch's successful results.
func NewReview(b models.Batch) *Review {
	return &Review{
		batchID:    b.ID,
		results:    b.Results(),
		errored:    b.Errored(),
		deselected: make(map[string]bool),
	}
}

// BatchID returns the id of the reviewed batch.
func (r *Review) BatchID() int64 {
	return r.batchID
}

// State partitions the results against known and reports the selection.
func (r *Review) State(known []models.ProductRecord) ReviewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(known)
}

func (r *Review) stateLocked(known []models.ProductRecord) ReviewState {
	p := PartitionResults(r.results, known)
	selected := make([]string, 0, len(p.New))
	for _, rec := range p.New {
		if !r.deselected[rec.ProductID] && !slices.Contains(selected, rec.ProductID) {
			selected = append(selected, rec.ProductID)
		}
	}
	return ReviewState{
		BatchID:    r.batchID,
		New:        p.New,
		Duplicates: p.Duplicates,
		Selected:   selected,
		Errored:    slices.Clone(r.errored),
	}
}

// Toggle flips the selection of a new result. Ids of duplicates or of
// records outside the batch are ignored. Reports whether anything changed.
func (r *Review) Toggle(known []models.ProductRecord, productID string) (ReviewState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.stateLocked(known)
	selectable := slices.ContainsFunc(state.New, func(rec models.ProductRecord) bool {
		return rec.ProductID == productID
	})
	if !selectable {
		return state, false
	}

	if r.deselected[productID] {
		delete(r.deselected, productID)
	} else {
		r.deselected[productID] = true
	}
	return r.stateLocked(known), true
}

// Selected returns the new results currently selected, in batch order.
func (r *Review) Selected(known []models.ProductRecord) []models.ProductRecord {
	state := r.State(known)
	out := make([]models.ProductRecord, 0, len(state.Selected))
	for _, rec := range state.New {
		if slices.Contains(state.Selected, rec.ProductID) {
			out = append(out, rec)
		}
	}
	return out
}

// SelectedJSON renders the selected records as indented JSON.
func (r *Review) SelectedJSON(known []models.ProductRecord) ([]byte, error) {
	data, err := json.MarshalIndent(r.Selected(known), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal selection: %w", err)
	}
	return data, nil
}

// CommitResult reports the outcome of merging a selection into the store.
type CommitResult struct {
	BatchID int64                  `json:"batch_id"`
	Added   []models.ProductRecord `json:"added"`
	Skipped []string               `json:"skipped,omitempty"`
}

// commitSelection inserts records into store. Ids that another writer stored
// in the meantime are skipped rather than duplicated.
func commitSelection(ctx context.Context, store KnowledgeStore, batchID int64, selected []models.ProductRecord) (CommitResult, error) {
	if len(selected) == 0 {
		return CommitResult{}, ErrEmptySelection
	}

	inserted, err := store.Insert(ctx, selected)
	if err != nil {
		return CommitResult{}, fmt.Errorf("insert records: %w", err)
	}

	added := make(map[string]struct{}, len(inserted))
	for _, rec := range inserted {
		added[rec.ProductID] = struct{}{}
	}
	var skipped []string
	for _, rec := range selected {
		if _, ok := added[rec.ProductID]; !ok && !slices.Contains(skipped, rec.ProductID) {
			skipped = append(skipped, rec.ProductID)
		}
	}

	return CommitResult{BatchID: batchID, Added: inserted, Skipped: skipped}, nil
}
