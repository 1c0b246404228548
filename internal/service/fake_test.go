package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raphaelgruber/prodscout/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id, name, category string) models.ProductRecord {
	return models.ProductRecord{
		ProductID:   id,
		ProductName: name,
		Category:    category,
		Summary:     models.ProductSummary{Description: name + " summary"},
	}
}

type outcome struct {
	rec *models.ProductRecord
	err error
}

// fakeBackend is a Collaborators whose research calls block until released.
type fakeBackend struct {
	mu         sync.Mutex
	pending    map[string]chan outcome
	started    chan string
	categories []string
	products   map[string][]string
	identErr   map[string]error
	calls      map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pending:  make(map[string]chan outcome),
		started:  make(chan string, 64),
		products: make(map[string][]string),
		identErr: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeBackend) gate(product string) chan outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.pending[product]
	if !ok {
		ch = make(chan outcome, 1)
		f.pending[product] = ch
	}
	return ch
}

func (f *fakeBackend) DiscoverCategories(_ context.Context, query string) ([]string, error) {
	if query == "fail" {
		return nil, errors.New("backend unavailable")
	}
	return f.categories, nil
}

func (f *fakeBackend) IdentifyProducts(_ context.Context, category string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[category]++
	if err := f.identErr[category]; err != nil {
		return nil, err
	}
	return f.products[category], nil
}

func (f *fakeBackend) ResearchProduct(ctx context.Context, productName, _ string) (*models.ProductRecord, error) {
	ch := f.gate(productName)
	f.started <- productName
	select {
	case o := <-ch:
		return o.rec, o.err
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("test timeout researching %s", productName)
	}
}

func (f *fakeBackend) succeed(product string, rec models.ProductRecord) {
	f.gate(product) <- outcome{rec: &rec}
}

func (f *fakeBackend) fail(product, msg string) {
	f.gate(product) <- outcome{err: errors.New(msg)}
}

// awaitStarted blocks until n research calls have begun.
func (f *fakeBackend) awaitStarted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d research calls started", i, n)
		}
	}
}

// awaitJob polls a batch until its job for product reaches status.
func awaitJob(t *testing.T, m *BatchManager, id int64, product string, status models.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		b, ok := m.Get(id)
		if !ok {
			return false
		}
		for _, j := range b.Jobs {
			if j.ProductName == product {
				return j.Status == status
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

type fakeExporter struct {
	mu      sync.Mutex
	err     error
	pickErr error
	written map[string][]models.ProductRecord
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{written: make(map[string][]models.ProductRecord)}
}

func (e *fakeExporter) ExportRecords(_ context.Context, dest models.Destination, records []models.ProductRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.written[dest.ID] = append(e.written[dest.ID], records...)
	return nil
}

func (e *fakeExporter) PickOrCreateDestination(_ context.Context) (models.Destination, error) {
	if e.pickErr != nil {
		return models.Destination{}, e.pickErr
	}
	return models.Destination{ID: "sheet-1", Name: "Product Research"}, nil
}
