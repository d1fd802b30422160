package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/siteintel/internal/analytics"
)

// ErrEmptyUserID is returned when a call is made without a user id.
var ErrEmptyUserID = errors.New("store: user id is required")

// ResultStore persists the latest analysis results for a user.
// Saves are last-write-wins per user id.
type ResultStore interface {
	SaveResults(ctx context.Context, userID string, results []analytics.AnalysisResult) error
	// LoadResults returns found=false when the user has no stored results.
	LoadResults(ctx context.Context, userID string) ([]analytics.AnalysisResult, bool, error)
	Close()
}

// Noop discards writes and never finds anything. It is used when no
// database is configured.
type Noop struct{}

// SaveResults implements ResultStore.
func (Noop) SaveResults(context.Context, string, []analytics.AnalysisResult) error { return nil }

// LoadResults implements ResultStore.
func (Noop) LoadResults(context.Context, string) ([]analytics.AnalysisResult, bool, error) {
	return nil, false, nil
}

// Close implements ResultStore.
func (Noop) Close() {}
