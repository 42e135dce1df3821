package catalog

import "errors"

// SimilarityThreshold is the minimum trigram similarity for a name match.
const SimilarityThreshold = 0.3

var ErrNotFound = errors.New("product not found")

// Product is the read-only catalog view used by the cart
type Product struct {
	ID         string  `json:"product_id"`
	Name       string  `json:"product_name"`
	Category   string  `json:"category,omitempty"`
	IsOrganic  bool    `json:"is_organic"`
	IsVIP      bool    `json:"is_vip"`
	Similarity float64 `json:"similarity"`
}

// Query describes a fuzzy product lookup.
//
// Category and Organic narrow the match only when the searcher was built
// with Options.ApplyFilters; otherwise they are accepted and ignored.
type Query struct {
	Name       string
	Privileged bool
	Category   *string
	Organic    *bool
}

type Options struct {
	ApplyFilters bool
}

func (o Options) matches(p Product, q Query) bool {
	if !o.ApplyFilters {
		return true
	}
	if q.Category != nil && p.Category != *q.Category {
		return false
	}
	if q.Organic != nil && p.IsOrganic != *q.Organic {
		return false
	}
	return true
}
