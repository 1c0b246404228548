package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/prodscout/internal/models"
)

func finishedBatch(id int64, results ...models.ProductRecord) models.Batch {
	b := models.Batch{ID: id}
	for _, r := range results {
		b.Jobs = append(b.Jobs, models.Job{
			ProductName: r.ProductName,
			Category:    r.Category,
			Status:      models.StatusComplete,
			Result:      &r,
		})
	}
	return b
}

func TestPartitionResults(t *testing.T) {
	known := []models.ProductRecord{record("sony-wh", "Sony WH", "Headphones")}
	results := []models.ProductRecord{
		record("sony-wh", "Sony WH", "Headphones"),
		record("bose-qc", "Bose QC", "Headphones"),
		record("bose-qc", "Bose QC II", "Headphones"),
	}

	p := PartitionResults(results, known)
	assert.Equal(t, []string{"bose-qc", "bose-qc"}, models.ProductIDs(p.New))
	assert.Equal(t, []string{"sony-wh"}, models.ProductIDs(p.Duplicates))
	assert.Len(t, append(p.New, p.Duplicates...), len(results))

	empty := PartitionResults(nil, known)
	assert.NotNil(t, empty.New)
	assert.NotNil(t, empty.Duplicates)
}

func TestReviewSelectsNewByDefault(t *testing.T) {
	known := []models.ProductRecord{record("x1", "X1", "Cameras")}
	r := NewReview(finishedBatch(3,
		record("x1", "X1", "Cameras"),
		record("x2", "X2", "Cameras"),
	))

	state := r.State(known)
	assert.Equal(t, int64(3), state.BatchID)
	assert.Equal(t, []string{"x2"}, state.Selected)
	assert.Equal(t, []string{"x1"}, models.ProductIDs(state.Duplicates))

	// Duplicates cannot be selected.
	state, changed := r.Toggle(known, "x1")
	assert.False(t, changed)
	assert.Equal(t, []string{"x2"}, state.Selected)

	state, changed = r.Toggle(known, "unknown")
	assert.False(t, changed)
	assert.Equal(t, []string{"x2"}, state.Selected)

	state, changed = r.Toggle(known, "x2")
	assert.True(t, changed)
	assert.Empty(t, state.Selected)

	state, _ = r.Toggle(known, "x2")
	assert.Equal(t, []string{"x2"}, state.Selected)
}

func TestReviewRecomputesAgainstLatestStore(t *testing.T) {
	r := NewReview(finishedBatch(1,
		record("a", "A", "Cameras"),
		record("b", "B", "Cameras"),
		record("c", "C", "Cameras"),
	))

	state, _ := r.Toggle(nil, "c")
	assert.Equal(t, []string{"a", "b"}, state.Selected)

	// Another batch committed "b" meanwhile.
	known := []models.ProductRecord{record("b", "B", "Cameras")}
	state = r.State(known)
	assert.Equal(t, []string{"a"}, state.Selected)
	assert.Equal(t, []string{"b"}, models.ProductIDs(state.Duplicates))
	assert.Equal(t, []string{"a"}, models.ProductIDs(r.Selected(known)))

	data, err := r.SelectedJSON(known)
	require.NoError(t, err)
	var decoded []models.ProductRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"a"}, models.ProductIDs(decoded))
}

func TestReviewKeepsErroredJobs(t *testing.T) {
	b := finishedBatch(1, record("a", "A", "Cameras"))
	b.Jobs = append(b.Jobs, models.Job{ProductName: "B", Status: models.StatusError, Error: "timeout"})

	state := NewReview(b).State(nil)
	require.Len(t, state.Errored, 1)
	assert.Equal(t, "timeout", state.Errored[0].Error)
	assert.Equal(t, []string{"a"}, state.Selected)
}

func TestCommitSelection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(record("b", "B", "Cameras"))

	_, err := commitSelection(ctx, store, 1, nil)
	require.ErrorIs(t, err, ErrEmptySelection)

	res, err := commitSelection(ctx, store, 1, []models.ProductRecord{
		record("a", "A", "Cameras"),
		record("b", "B", "Cameras"),
		record("a", "A again", "Cameras"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, models.ProductIDs(res.Added))
	assert.Equal(t, []string{"b"}, res.Skipped)
	assert.Equal(t, 2, store.Len())

	// Repeating the same commit inserts nothing.
	res, err = commitSelection(ctx, store, 1, []models.ProductRecord{record("a", "A", "Cameras")})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"a"}, res.Skipped)
	assert.Equal(t, 2, store.Len())
}
