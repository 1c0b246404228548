package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// ProductStore is the SurrealDB-backed knowledge store.
type ProductStore struct {
	client *Client
}

// NewProductStore creates a store over client.
func NewProductStore(client *Client) *ProductStore {
	return &ProductStore{client: client}
}

// List returns every stored record in commit order.
func (s *ProductStore) List(ctx context.Context) ([]models.ProductRecord, error) {
	results, err := surrealdb.Query[[]models.ProductRecord](ctx, s.client.db, `
		SELECT * OMIT id FROM product ORDER BY committed_at ASC, product_id ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.ProductRecord{}, nil
	}
	return (*results)[0].Result, nil
}

// Get returns one record by product_id, or ErrNotFound.
func (s *ProductStore) Get(ctx context.Context, productID string) (*models.ProductRecord, error) {
	results, err := surrealdb.Query[[]models.ProductRecord](ctx, s.client.db, `
		SELECT * OMIT id FROM type::record("product", $id)
	`, map[string]any{"id": productID})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	return &(*results)[0].Result[0], nil
}

// Insert creates a record per product_id not yet stored and returns the
// created ones. Ids already present, including ones created concurrently by
// another commit, are skipped.
func (s *ProductStore) Insert(ctx context.Context, records []models.ProductRecord) ([]models.ProductRecord, error) {
	inserted := make([]models.ProductRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if _, dup := seen[rec.ProductID]; dup {
			continue
		}
		seen[rec.ProductID] = struct{}{}

		created, err := s.create(ctx, rec)
		if errors.Is(err, ErrTransactionConflict) {
			// Lost a race with another commit; the winner decides.
			if _, getErr := s.Get(ctx, rec.ProductID); getErr == nil {
				err = ErrEntityAlreadyExists
			} else {
				created, err = s.create(ctx, rec)
			}
		}
		if errors.Is(err, ErrEntityAlreadyExists) {
			s.client.logger.Debug("product already stored, skipping", "product_id", rec.ProductID)
			continue
		}
		if err != nil {
			return inserted, err
		}
		if created {
			inserted = append(inserted, rec)
		}
	}
	return inserted, nil
}

func (s *ProductStore) create(ctx context.Context, rec models.ProductRecord) (bool, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, s.client.db, `
		CREATE type::record("product", $id) CONTENT $record RETURN product_id
	`, map[string]any{
		"id":     rec.ProductID,
		"record": rec,
	})
	if err != nil {
		return false, fmt.Errorf("create product %s: %w", rec.ProductID, wrapQueryError(err))
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

// Count returns the number of stored records.
func (s *ProductStore) Count(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, s.client.db, `SELECT count() AS count FROM product GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
