package service

import (
	"context"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// CategoryDiscoverer turns a free-text query into candidate categories.
// An empty result is valid.
type CategoryDiscoverer interface {
	DiscoverCategories(ctx context.Context, query string) ([]string, error)
}

// ProductIdentifier lists researchable product names within a category.
type ProductIdentifier interface {
	IdentifyProducts(ctx context.Context, category string) ([]string, error)
}

// ProductResearcher produces a populated record for one product.
// Failures carry a human-readable message.
type ProductResearcher interface {
	ResearchProduct(ctx context.Context, productName, category string) (*models.ProductRecord, error)
}

// Collaborators bundles the generative backend capabilities.
type Collaborators interface {
	CategoryDiscoverer
	ProductIdentifier
	ProductResearcher
}

// RecordExporter mirrors records into an external tabular destination.
// ExportRecords must be safe to call repeatedly and writes a header row
// exactly once when the destination is empty.
type RecordExporter interface {
	ExportRecords(ctx context.Context, dest models.Destination, records []models.ProductRecord) error
	PickOrCreateDestination(ctx context.Context) (models.Destination, error)
}

// KnowledgeStore is the persisted, append-only set of accepted records.
type KnowledgeStore interface {
	// List returns all records in insertion order.
	List(ctx context.Context) ([]models.ProductRecord, error)
	// Insert appends records whose product_id is not yet stored and returns
	// the ones actually inserted. Records with a known id are skipped.
	Insert(ctx context.Context, records []models.ProductRecord) ([]models.ProductRecord, error)
}
