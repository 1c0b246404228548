package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/prodscout/internal/models"
)

func TestTracker(t *testing.T) {
	stored := []models.ProductRecord{record("a", "A", "Headphones")}
	active := []models.Batch{{
		ID: 1,
		Jobs: []models.Job{
			{ProductName: "B", Status: models.StatusError},
			{ProductName: "D", Status: models.StatusPending},
		},
	}}
	tr := NewTracker(stored, active)

	tests := []struct {
		name       string
		candidates []string
		complete   bool
	}{
		{"stored and errored job", []string{"A", "B"}, true},
		{"one unaccounted", []string{"A", "B", "C"}, false},
		{"pending job counts", []string{"D"}, true},
		{"empty list is not complete", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, tr.IsCategoryComplete(tt.candidates))
		})
	}

	assert.True(t, tr.IsProductAccounted("B"))
	assert.False(t, tr.IsProductAccounted("C"))
	assert.Equal(t, []string{"C"}, tr.Unaccounted([]string{"A", "C", "D"}))
	assert.Equal(t,
		map[string]bool{"Headphones": false, "Speakers": true},
		tr.CategoryCompletion(map[string][]string{"Headphones": {"A", "C"}, "Speakers": {"D"}}))
}

func TestTrackerForgetsDismissedBatches(t *testing.T) {
	batch := models.Batch{ID: 1, Jobs: []models.Job{{ProductName: "B", Status: models.StatusError}}}

	before := NewTracker(nil, []models.Batch{batch})
	assert.True(t, before.IsCategoryComplete([]string{"B"}))

	after := NewTracker(nil, nil)
	assert.False(t, after.IsCategoryComplete([]string{"B"}))
}

func TestTrackerSharedProductAcrossCategories(t *testing.T) {
	identified := map[string][]string{
		"Headphones": {"BrandX-100", "Sony WH"},
		"Speakers":   {"BrandX-100"},
	}

	tr := NewTracker([]models.ProductRecord{record("brandx-100", "BrandX-100", "Speakers")}, nil)
	assert.Equal(t, map[string]bool{"Headphones": false, "Speakers": true}, tr.CategoryCompletion(identified))

	tr = NewTracker(
		[]models.ProductRecord{record("brandx-100", "BrandX-100", "Speakers")},
		[]models.Batch{{ID: 2, Jobs: []models.Job{{ProductName: "Sony WH", Status: models.StatusInProgress}}}},
	)
	assert.True(t, tr.IsCategoryComplete(identified["Headphones"]))
}
