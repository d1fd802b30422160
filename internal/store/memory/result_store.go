// Package memory provides an in-memory ResultStore for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/store"
)

// ResultStore keeps the encoded payload per user so reads go through the
// same codec as the database-backed store.
type ResultStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

var _ store.ResultStore = (*ResultStore)(nil)

// New constructs an empty ResultStore.
func New() *ResultStore {
	return &ResultStore{rows: make(map[string][]byte)}
}

// SaveResults implements store.ResultStore.
func (s *ResultStore) SaveResults(_ context.Context, userID string, results []analytics.AnalysisResult) error {
	if userID == "" {
		return store.ErrEmptyUserID
	}
	payload, err := store.EncodeResults(results)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = payload
	return nil
}

// LoadResults implements store.ResultStore.
func (s *ResultStore) LoadResults(_ context.Context, userID string) ([]analytics.AnalysisResult, bool, error) {
	if userID == "" {
		return nil, false, store.ErrEmptyUserID
	}
	s.mu.RLock()
	payload, ok := s.rows[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return store.DecodeResults(payload)
}

// Put stores a raw payload verbatim, mirroring rows written by other tools.
func (s *ResultStore) Put(userID string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = append([]byte(nil), payload...)
}

// Len reports how many users have stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Close implements store.ResultStore.
func (s *ResultStore) Close() {}
