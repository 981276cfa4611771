package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/storage/local"
)

// ResultStore keeps completed crawl records in memory, for development and
// tests.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]catalog.SavedResult
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]catalog.SavedResult)}
}

// Save stores the record under the derived key and returns the key.
func (s *ResultStore) Save(_ context.Context, brandName string, result catalog.SavedResult) (string, error) {
	key := local.DeriveKey(brandName, result.ScrapedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = result
	return key, nil
}

// List returns every saved key, sorted.
func (s *ResultStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.results))
	for k := range s.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get loads one saved record by key.
func (s *ResultStore) Get(_ context.Context, key string) (catalog.SavedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[key]
	if !ok {
		return catalog.SavedResult{}, catalog.ErrNotFound
	}
	return result, nil
}

// Delete removes a saved record.
func (s *ResultStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[key]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.results, key)
	return nil
}
