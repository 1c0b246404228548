package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/models"
)

func selections(names ...string) []Selection {
	out := make([]Selection, len(names))
	for i, n := range names {
		out[i] = Selection{ProductName: n, Category: "Headphones"}
	}
	return out
}

func TestCreateBatchValidation(t *testing.T) {
	m := NewBatchManager(newFakeBackend(), nil, quietLogger())

	_, err := m.CreateBatch(nil)
	require.ErrorIs(t, err, ErrNoSelections)

	_, err = m.CreateBatch(selections("A", "B", "A"))
	require.ErrorIs(t, err, ErrDuplicateProductInBatch)

	_, err = m.CreateBatch([]Selection{{ProductName: "", Category: "x"}})
	require.ErrorIs(t, err, ErrInvalidSelection)

	assert.Empty(t, m.List(), "rejected requests must not create batches")

	b, err := m.CreateBatch(selections("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
	assert.Equal(t, models.StatusPending, b.OverallStatus())
	for _, j := range b.Jobs {
		assert.Equal(t, models.StatusPending, j.Status)
		assert.Nil(t, j.StartedAt)
	}
}

func TestLaunchRunsJobsConcurrently(t *testing.T) {
	f := newFakeBackend()
	mc := metrics.NewCollector()
	m := NewBatchManager(f, mc, quietLogger())

	b, err := m.Launch(context.Background(), selections("X", "Y", "Z"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, b.OverallStatus())

	// All three calls are outstanding at once.
	f.awaitStarted(t, 3)

	f.succeed("Y", record("y", "Y", "Headphones"))
	f.fail("X", "boom")
	f.succeed("Z", record("z", "Z", "Headphones"))
	m.Wait()

	got, ok := m.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusError, got.OverallStatus())
	assert.Equal(t, models.BatchCounts{Total: 3, Complete: 2, Error: 1}, got.Counts())
	assert.Equal(t, "boom", got.Jobs[0].Error)
	assert.Nil(t, got.Jobs[0].Result)
	for _, j := range got.Jobs {
		assert.NotNil(t, j.StartedAt)
		assert.NotNil(t, j.CompletedAt)
	}

	snap := mc.Snapshot()
	require.NotNil(t, snap.Research)
	require.NotNil(t, snap.ResearchError)
	assert.Equal(t, int64(2), snap.Research.Count)
	assert.Equal(t, int64(1), snap.ResearchError.Count)
}

// Every completion order of three jobs must leave the same final state.
func TestCompletionOrderIndependence(t *testing.T) {
	orders := [][]string{
		{"A", "B", "C"}, {"A", "C", "B"}, {"B", "A", "C"},
		{"B", "C", "A"}, {"C", "A", "B"}, {"C", "B", "A"},
	}
	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			f := newFakeBackend()
			m := NewBatchManager(f, nil, quietLogger())
			b, err := m.Launch(context.Background(), selections("A", "B", "C"))
			require.NoError(t, err)
			f.awaitStarted(t, 3)

			for i, name := range order {
				want := models.StatusComplete
				if name == "B" {
					want = models.StatusError
					f.fail(name, "no data")
				} else {
					f.succeed(name, record(name, name, "Headphones"))
				}
				awaitJob(t, m, b.ID, name, want)

				status, err := m.OverallStatus(b.ID)
				require.NoError(t, err)
				if i < len(order)-1 {
					assert.Equal(t, models.StatusInProgress, status)
				}
			}
			m.Wait()

			got, _ := m.Get(b.ID)
			assert.Equal(t, models.StatusError, got.OverallStatus())
			assert.Equal(t, models.StatusComplete, got.Jobs[0].Status)
			assert.Equal(t, models.StatusError, got.Jobs[1].Status)
			assert.Equal(t, models.StatusComplete, got.Jobs[2].Status)
			assert.Len(t, got.Results(), 2)
		})
	}
}

func TestConcurrentBatchesDoNotLoseUpdates(t *testing.T) {
	f := newFakeBackend()
	m := NewBatchManager(f, nil, quietLogger())

	const batches, perBatch = 5, 6
	ids := make([]int64, batches)
	for i := range batches {
		names := make([]string, perBatch)
		for j := range perBatch {
			names[j] = fmt.Sprintf("p-%d-%d", i, j)
		}
		b, err := m.Launch(context.Background(), selections(names...))
		require.NoError(t, err)
		ids[i] = b.ID
	}
	f.awaitStarted(t, batches*perBatch)

	var wg sync.WaitGroup
	for i := range batches {
		for j := range perBatch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				name := fmt.Sprintf("p-%d-%d", i, j)
				f.succeed(name, record(name, name, "Headphones"))
			}()
		}
	}
	wg.Wait()
	m.Wait()

	for _, id := range ids {
		b, ok := m.Get(id)
		require.True(t, ok)
		assert.Equal(t, models.StatusComplete, b.OverallStatus())
		assert.Len(t, b.Results(), perBatch)
	}
}

func TestDismissDiscardsLateResults(t *testing.T) {
	f := newFakeBackend()
	m := NewBatchManager(f, nil, quietLogger())

	events, cancel := m.Subscribe(32)
	defer cancel()

	b, err := m.Launch(context.Background(), selections("Late"))
	require.NoError(t, err)
	f.awaitStarted(t, 1)

	other, err := m.Launch(context.Background(), selections("Other"))
	require.NoError(t, err)
	f.awaitStarted(t, 1)
	f.succeed("Other", record("other", "Other", "Headphones"))
	awaitJob(t, m, other.ID, "Other", models.StatusComplete)
	before, ok := m.Get(other.ID)
	require.True(t, ok)

	assert.True(t, m.Dismiss(b.ID))
	assert.False(t, m.Dismiss(b.ID), "second dismissal is a no-op")

	f.succeed("Late", record("late", "Late", "Headphones"))
	m.Wait()

	_, ok = m.Get(b.ID)
	assert.False(t, ok)
	after, ok := m.Get(other.ID)
	require.True(t, ok)
	assert.Equal(t, before, after, "a late result leaves other batches untouched")
	require.Len(t, m.List(), 1)
	assert.Equal(t, other.ID, m.List()[0].ID)

	var types []EventType
	for len(events) > 0 {
		if ev := <-events; ev.BatchID == b.ID {
			types = append(types, ev.Type)
		}
	}
	assert.Equal(t, []EventType{EventBatchCreated, EventJobUpdated, EventBatchDismissed}, types)
}

func TestDismissUnknownBatch(t *testing.T) {
	m := NewBatchManager(newFakeBackend(), nil, quietLogger())
	assert.False(t, m.Dismiss(42))

	_, err := m.OverallStatus(42)
	require.ErrorIs(t, err, ErrBatchNotFound)
	require.ErrorIs(t, m.Dispatch(context.Background(), 42), ErrBatchNotFound)
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newFakeBackend()
	m := NewBatchManager(f, nil, quietLogger())

	b, err := m.CreateBatch(selections("Once"))
	require.NoError(t, err)
	require.NoError(t, m.Dispatch(context.Background(), b.ID))
	require.NoError(t, m.Dispatch(context.Background(), b.ID))
	f.awaitStarted(t, 1)

	f.succeed("Once", record("once", "Once", "Headphones"))
	m.Wait()

	select {
	case name := <-f.started:
		t.Fatalf("unexpected second research call for %s", name)
	default:
	}
}

func TestResearchSurvivesCallerCancellation(t *testing.T) {
	f := newFakeBackend()
	m := NewBatchManager(f, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	b, err := m.Launch(ctx, selections("Detached"))
	require.NoError(t, err)
	f.awaitStarted(t, 1)
	cancel()

	f.succeed("Detached", record("detached", "Detached", "Headphones"))
	m.Wait()

	got, ok := m.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusComplete, got.OverallStatus())
}

type panicky struct{}

func (panicky) ResearchProduct(context.Context, string, string) (*models.ProductRecord, error) {
	panic("kaboom")
}

type nilResearcher struct{}

func (nilResearcher) ResearchProduct(context.Context, string, string) (*models.ProductRecord, error) {
	return nil, nil
}

func TestResearchFailuresBecomeErrorJobs(t *testing.T) {
	tests := []struct {
		name       string
		researcher ProductResearcher
		wantErr    string
	}{
		{"panic", panicky{}, "internal panic: kaboom"},
		{"nil record", nilResearcher{}, "research returned no record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewBatchManager(tt.researcher, nil, quietLogger())
			b, err := m.Launch(context.Background(), selections("P"))
			require.NoError(t, err)
			m.Wait()

			got, _ := m.Get(b.ID)
			assert.Equal(t, models.StatusError, got.OverallStatus())
			assert.Equal(t, tt.wantErr, got.Jobs[0].Error)
		})
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	f := newFakeBackend()
	m := NewBatchManager(f, nil, quietLogger())
	b, err := m.Launch(context.Background(), selections("S"))
	require.NoError(t, err)
	f.awaitStarted(t, 1)
	f.succeed("S", record("s", "S", "Headphones"))
	m.Wait()

	snap, _ := m.Get(b.ID)
	snap.Jobs[0].Status = models.StatusPending
	snap.Jobs[0].Result.ProductName = "mutated"

	again, _ := m.Get(b.ID)
	assert.Equal(t, models.StatusComplete, again.Jobs[0].Status)
	assert.Equal(t, "S", again.Jobs[0].Result.ProductName)
}

func TestListOrdersByID(t *testing.T) {
	m := NewBatchManager(newFakeBackend(), nil, quietLogger())
	for i := range 4 {
		_, err := m.CreateBatch(selections(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}
	m.Dismiss(2)

	var ids []int64
	for _, b := range m.List() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int64{1, 3, 4}, ids)
}

func TestSubscribeCancel(t *testing.T) {
	m := NewBatchManager(newFakeBackend(), nil, quietLogger())
	events, cancel := m.Subscribe(1)
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)

	// Publishing after cancellation must not panic.
	_, err := m.CreateBatch(selections("after"))
	require.NoError(t, err)

	select {
	case <-time.After(10 * time.Millisecond):
	case _, open := <-events:
		assert.False(t, open)
	}
}
