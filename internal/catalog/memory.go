package catalog

import (
	"context"
	"strings"
	"sync"
)

// MemorySearcher serves fuzzy lookups from an in-process product list using
// the same trigram similarity as pg_trgm.
type MemorySearcher struct {
	mu       sync.RWMutex
	products []Product
	opts     Options
}

func NewMemorySearcher(products []Product, opts Options) *MemorySearcher {
	return &MemorySearcher{products: append([]Product(nil), products...), opts: opts}
}

// Add appends a product to the catalog
func (s *MemorySearcher) Add(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p)
}

// Search returns the best match above SimilarityThreshold. Equal scores keep
// the earlier product.
func (s *MemorySearcher) Search(ctx context.Context, q Query) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(q.Name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Product
	for _, p := range s.products {
		if p.IsVIP && !q.Privileged {
			continue
		}
		if !s.opts.matches(p, q) {
			continue
		}
		sim := Similarity(p.Name, name)
		if sim <= SimilarityThreshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			match := p
			match.Similarity = sim
			best = &match
		}
	}

	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}
