// Package sources contains the retailer adapters that feed the staging
// buffer and the price pipeline. Each adapter decides internally how it
// talks to its retailer; callers only see the SourceAdapter interface.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// ErrNotSupported is returned when an adapter does not implement an
// operation (catalog-only vs price-only adapters). Callers should check
// with errors.Is().
var ErrNotSupported = errors.New("operation not supported by source")

// Listing is one product tile from a category listing page.
type Listing struct {
	SourceID string
	URL      string
	Name     string
	Brand    string
}

// PriceCandidate is one scraped search result from a price source.
type PriceCandidate struct {
	Name     string
	Brand    string
	PriceKRW *float64
	PriceUSD *float64
	URL      string
	InStock  bool
}

// SourceAdapter is the narrow interface every retailer implements.
// Catalog sources implement ListCategory and FetchDetail; price sources
// implement SearchProduct; unimplemented operations return ErrNotSupported.
type SourceAdapter interface {
	// Name returns the adapter's source identifier.
	Name() string
	// ListCategory returns the product listings on one category page.
	ListCategory(ctx context.Context, categoryID string, page int) ([]Listing, error)
	// FetchDetail scrapes a product detail page into a raw staging record.
	FetchDetail(ctx context.Context, listing Listing) (*domain.StagingRecord, error)
	// SearchProduct searches the retailer by brand and name and returns
	// price candidates. An empty result is a normal outcome for sources
	// behind bot mitigation.
	SearchProduct(ctx context.Context, brand, name string) ([]PriceCandidate, error)
}

// Registry holds the configured adapters keyed by source name.
type Registry struct {
	adapters map[string]SourceAdapter
}

// NewRegistry creates a registry from the given adapters.
func NewRegistry(adapters ...SourceAdapter) *Registry {
	r := &Registry{adapters: make(map[string]SourceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (SourceAdapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", name)
	}
	return a, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
