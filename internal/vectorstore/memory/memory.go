package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"textbookrag/internal/domain"
	"textbookrag/internal/vectorstore"
)

type collection struct {
	spec   vectorstore.CollectionSpec
	order  []string
	points map[string]domain.Point
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Upserts with an existing id replace the point, as Qdrant does.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

func (s *Storage) CreateCollection(_ context.Context, spec vectorstore.CollectionSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[spec.Name]; ok {
		return nil
	}
	s.collections[spec.Name] = &collection{spec: spec, points: make(map[string]domain.Point)}
	return nil
}

func (s *Storage) Upsert(_ context.Context, name string, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s not found", name)
	}
	// Validate the whole batch first so a bad point rejects all of it.
	for _, p := range points {
		if len(p.Vector) != c.spec.Dimension {
			return fmt.Errorf("point %s: vector dimension %d, collection %s expects %d", p.ID, len(p.Vector), name, c.spec.Dimension)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (s *Storage) Search(_ context.Context, name string, q domain.Query) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	if len(q.Vector) != c.spec.Dimension {
		return nil, fmt.Errorf("query dimension %d, collection %s expects %d", len(q.Vector), name, c.spec.Dimension)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}
	var results []domain.SearchResult
	for _, id := range c.order {
		p := c.points[id]
		if !q.Filter.Matches(p.Payload) {
			continue
		}
		results = append(results, domain.SearchResult{ID: p.ID, Score: cosine(q.Vector, p.Vector), Payload: p.Payload})
	}
	// Stable so equal scores keep insertion order.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Storage) CollectionInfo(_ context.Context, name string) (vectorstore.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return vectorstore.CollectionInfo{}, fmt.Errorf("collection %s not found", name)
	}
	return vectorstore.CollectionInfo{Name: name, Status: "green", PointsCount: len(c.points)}, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
