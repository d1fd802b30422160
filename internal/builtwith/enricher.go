package builtwith

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/fallback"
	"github.com/JakeFAU/siteintel/internal/metrics"
	"github.com/JakeFAU/siteintel/internal/mockdata"
)

// Lookuper resolves a domain's technology profile.
type Lookuper interface {
	Lookup(ctx context.Context, domain string) (analytics.TechProfile, error)
}

// Enricher attaches technology profiles, never failing.
type Enricher struct {
	lookup Lookuper
	logger *zap.Logger
}

// NewEnricher builds an Enricher. A nil lookup always serves canned profiles.
func NewEnricher(lookup Lookuper, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{lookup: lookup, logger: logger}
}

// Enrich returns the live profile for domain, or the canned one when the
// lookup fails for any reason.
func (e *Enricher) Enrich(ctx context.Context, domain string) fallback.Result[analytics.TechProfile] {
	domain = analytics.CleanDomain(domain)
	res := fallback.Try(func() (analytics.TechProfile, error) {
		if e.lookup == nil {
			return analytics.TechProfile{}, ErrMissingAPIKey
		}
		return e.lookup.Lookup(ctx, domain)
	}, func() analytics.TechProfile {
		return mockdata.TechProfile(domain)
	})

	switch {
	case !res.Fallback:
		metrics.ObserveEnrichment("live")
	case errors.Is(res.Err, ErrMissingAPIKey):
		metrics.ObserveEnrichment("unconfigured")
		metrics.ObserveFallback("builtwith")
		e.logger.Debug("technology lookup not configured, using mock profile", zap.String("domain", domain))
	default:
		metrics.ObserveEnrichment("fallback")
		metrics.ObserveFallback("builtwith")
		e.logger.Warn("technology lookup failed, using mock profile",
			zap.String("domain", domain), zap.Error(res.Err))
	}
	return res
}

// EnrichResults attaches a profile to every result sequentially and returns
// how many profiles came from the canned table.
func (e *Enricher) EnrichResults(ctx context.Context, results []analytics.AnalysisResult) int {
	fallbacks := 0
	for i := range results {
		res := e.Enrich(ctx, results[i].Domain())
		if res.Fallback {
			fallbacks++
		}
		profile := res.Value
		results[i].BuiltWith = &profile
	}
	return fallbacks
}
