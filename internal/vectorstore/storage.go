package vectorstore

import (
	"context"

	"textbookrag/internal/domain"
)

// CollectionSpec declares a collection's fixed vector shape.
type CollectionSpec struct {
	Name      string
	Dimension int
	Distance  string
}

// CollectionInfo is a light status view of a collection.
type CollectionInfo struct {
	Name        string
	Status      string
	PointsCount int
}

// Storage persists points and supports filtered similarity search.
type Storage interface {
	// CreateCollection is idempotent: an existing collection is not an error.
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert writes one batch; the batch either fully succeeds or errors.
	Upsert(ctx context.Context, collection string, points []domain.Point) error
	// Search returns results ordered by descending score. An empty result is not an error.
	Search(ctx context.Context, collection string, q domain.Query) ([]domain.SearchResult, error)
	CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error)
}
