package service

import "github.com/raphaelgruber/prodscout/internal/models"

// Tracker answers whether products and categories are already accounted for:
// present in the knowledge store or reserved by a job of an active batch,
// whatever that job's status.
//
// A Tracker is a derived view over one snapshot of the store and the batch
// set; build a new one whenever either changes.
type Tracker struct {
	accounted map[string]struct{}
}

// NewTracker derives a tracker from the current records and active batches.
func NewTracker(records []models.ProductRecord, batches []models.Batch) Tracker {
	accounted := make(map[string]struct{}, len(records))
	for _, r := range records {
		accounted[r.ProductName] = struct{}{}
	}
	for _, b := range batches {
		for _, j := range b.Jobs {
			accounted[j.ProductName] = struct{}{}
		}
	}
	return Tracker{accounted: accounted}
}

// IsProductAccounted reports whether name is stored or reserved by an active job.
func (t Tracker) IsProductAccounted(name string) bool {
	_, ok := t.accounted[name]
	return ok
}

// IsCategoryComplete reports whether every candidate product is accounted for.
// An empty candidate list is never complete: nothing has been verified yet.
func (t Tracker) IsCategoryComplete(candidates []string) bool {
	if len(candidates) == 0 {
		return false
	}
	for _, p := range candidates {
		if !t.IsProductAccounted(p) {
			return false
		}
	}
	return true
}

// CategoryCompletion evaluates IsCategoryComplete for each identified category.
func (t Tracker) CategoryCompletion(identified map[string][]string) map[string]bool {
	out := make(map[string]bool, len(identified))
	for category, products := range identified {
		out[category] = t.IsCategoryComplete(products)
	}
	return out
}

// Unaccounted filters products down to the ones not yet accounted for, in order.
func (t Tracker) Unaccounted(products []string) []string {
	var out []string
	for _, p := range products {
		if !t.IsProductAccounted(p) {
			out = append(out, p)
		}
	}
	return out
}
