// Package service composes the job client, enricher, archive, store and
// publisher into the two analysis operations exposed over HTTP.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/apify"
	"github.com/JakeFAU/siteintel/internal/fallback"
	"github.com/JakeFAU/siteintel/internal/metrics"
	"github.com/JakeFAU/siteintel/internal/mockdata"
	"github.com/JakeFAU/siteintel/internal/publisher"
	"github.com/JakeFAU/siteintel/internal/store"
)

// Notes attached to responses served from mock data.
const (
	NoteNoToken         = "Using mock data - APIFY_API_TOKEN not configured"
	NoteAPIFailedPrefix = "API failed, using mock data. Error: "
	NoteNoStoredData    = "No stored SimilarWeb data for user, using mock data"
)

// Analysis kinds used in events and metrics.
const (
	KindSimilarWeb = "similarweb"
	KindTechStack  = "techstack"
)

var tracer = otel.Tracer("github.com/JakeFAU/siteintel/internal/service")

// ValidationError is returned for requests the caller must fix.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// Validation details surfaced to clients.
const (
	DetailNoWebsites = "Please provide an array of websites to analyze"
	DetailNoUserID   = "userId is required"
)

// MetricsSource runs the traffic-analytics job.
type MetricsSource interface {
	Configured() bool
	AnalyzeDomains(ctx context.Context, websites []string) (apify.Analysis, error)
}

// Enricher attaches technology profiles in place and reports how many were mocked.
type Enricher interface {
	EnrichResults(ctx context.Context, results []analytics.AnalysisResult) int
}

// Archiver keeps the raw job payload.
type Archiver interface {
	Archive(ctx context.Context, userID, runID string, payload []byte) (string, error)
}

// IDGenerator creates analysis ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// Deps groups the collaborators of a Service. Archiver and Publisher are optional.
type Deps struct {
	Source    MetricsSource
	Enricher  Enricher
	Store     store.ResultStore
	Archiver  Archiver
	Publisher publisher.Publisher
	IDs       IDGenerator
	Clock     Clock
}

// Config tunes side effects and deadlines. Zero durations mean unbounded.
type Config struct {
	Topic string
	// WorkBudget bounds the traffic job and technology lookups of one call.
	// When it runs out the remaining work falls back to mock data.
	WorkBudget time.Duration
	// WriteTimeout bounds each archive, store or publisher call.
	WriteTimeout time.Duration
}

// Service implements the analysis operations.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Service. A nil Store is replaced by store.Noop.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if deps.Store == nil {
		deps.Store = store.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

func validate(req analytics.AnalysisRequest) ([]string, error) {
	domains := analytics.Domains(req.Websites)
	if len(domains) == 0 {
		return nil, &ValidationError{Detail: DetailNoWebsites}
	}
	if req.UserID == "" {
		return nil, &ValidationError{Detail: DetailNoUserID}
	}
	return domains, nil
}

// Analyze runs the traffic analysis for the requested websites, falling back
// to mock data when the job service is unconfigured or fails. Only request
// validation produces an error.
func (s *Service) Analyze(ctx context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error) {
	domains, err := validate(req)
	if err != nil {
		return analytics.AnalysisResponse{}, err
	}
	// The work completes and is persisted even if the client goes away.
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "service.Analyze",
		trace.WithAttributes(attribute.String("siteintel.user_id", req.UserID), attribute.StringSlice("siteintel.domains", domains)))
	defer span.End()
	logger := s.logger.With(zap.String("user_id", req.UserID), zap.Strings("domains", domains))
	work, cancel := withTimeout(ctx, s.cfg.WorkBudget)
	defer cancel()

	var (
		note     string
		analysis apify.Analysis
		mock     bool
	)
	if s.deps.Source == nil || !s.deps.Source.Configured() {
		logger.Info("job service not configured, using mock data")
		analysis.Records = mockdata.SiteMetricsFor(req.Websites)
		note = NoteNoToken
		mock = true
		metrics.ObserveFallback(KindSimilarWeb)
	} else {
		res := fallback.Try(func() (apify.Analysis, error) {
			return s.deps.Source.AnalyzeDomains(work, req.Websites)
		}, func() apify.Analysis {
			return apify.Analysis{Records: mockdata.SiteMetricsFor(req.Websites)}
		})
		analysis = res.Value
		if res.Fallback {
			logger.Warn("job service failed, using mock data", zap.Error(res.Err))
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "job service failed")
			note = NoteAPIFailedPrefix + res.Err.Error()
			mock = true
			metrics.ObserveFallback(KindSimilarWeb)
		}
	}
	if analysis.Dropped > 0 {
		logger.Warn("dropped invalid records", zap.Int("dropped", analysis.Dropped), zap.String("run_id", analysis.RunID))
	}

	var archiveURI string
	if !mock && s.deps.Archiver != nil && len(analysis.Raw) > 0 {
		actx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
		uri, err := s.deps.Archiver.Archive(actx, req.UserID, analysis.RunID, analysis.Raw)
		cancel()
		if err != nil {
			metrics.ObservePersistenceFailure("archive")
			logger.Warn("archive raw dataset failed", zap.Error(err))
		} else {
			archiveURI = uri
		}
	}

	results := analytics.FromMetrics(analysis.Records)
	s.enrich(work, results)
	stored := s.persist(ctx, logger, req.UserID, results)
	s.publish(ctx, logger, publisher.AnalysisCompleted{
		UserID:     req.UserID,
		Kind:       KindSimilarWeb,
		Domains:    domains,
		Count:      len(results),
		Mock:       mock,
		Dropped:    analysis.Dropped,
		RunID:      analysis.RunID,
		ArchiveURI: archiveURI,
		Stored:     stored,
	})
	metrics.ObserveAnalysis(KindSimilarWeb, mock)
	span.SetAttributes(attribute.Int("siteintel.count", len(results)), attribute.Bool("siteintel.mock", mock),
		attribute.Int("siteintel.dropped", analysis.Dropped))
	logger.Info("analysis completed", zap.Int("count", len(results)), zap.Bool("mock", mock))

	return analytics.AnalysisResponse{
		Success: true,
		Data:    results,
		Count:   len(results),
		Note:    note,
		Dropped: analysis.Dropped,
	}, nil
}

// AnalyzeTechStack re-enriches the user's stored traffic results with fresh
// technology profiles. Requested domains with no stored record get mock records.
func (s *Service) AnalyzeTechStack(ctx context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error) {
	domains, err := validate(req)
	if err != nil {
		return analytics.AnalysisResponse{}, err
	}
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "service.AnalyzeTechStack",
		trace.WithAttributes(attribute.String("siteintel.user_id", req.UserID), attribute.StringSlice("siteintel.domains", domains)))
	defer span.End()
	logger := s.logger.With(zap.String("user_id", req.UserID), zap.Strings("domains", domains))
	work, cancel := withTimeout(ctx, s.cfg.WorkBudget)
	defer cancel()

	lctx, cancelLoad := withTimeout(ctx, s.cfg.WriteTimeout)
	stored, found, err := s.deps.Store.LoadResults(lctx, req.UserID)
	cancelLoad()
	if err != nil {
		logger.Warn("load stored results failed", zap.Error(err))
		span.RecordError(err)
		found = false
	}
	byDomain := make(map[string]analytics.AnalysisResult, len(stored))
	if found {
		for _, r := range stored {
			if d := r.Domain(); d != "" {
				if _, dup := byDomain[d]; !dup {
					byDomain[d] = r
				}
			}
		}
	}

	results := make([]analytics.AnalysisResult, 0, len(domains))
	mock := false
	for _, d := range domains {
		if r, ok := byDomain[d]; ok {
			results = append(results, r)
			continue
		}
		mock = true
		results = append(results, analytics.AnalysisResult{SiteMetrics: mockdata.SiteMetricsForDomain(d)})
	}
	var note string
	if mock {
		note = NoteNoStoredData
		metrics.ObserveFallback(KindSimilarWeb)
		logger.Info("no stored data for some domains, using mock data")
	}

	results = analytics.WithoutTechProfile(results)
	s.enrich(work, results)
	persisted := s.persist(ctx, logger, req.UserID, results)
	s.publish(ctx, logger, publisher.AnalysisCompleted{
		UserID:  req.UserID,
		Kind:    KindTechStack,
		Domains: domains,
		Count:   len(results),
		Mock:    mock,
		Stored:  persisted,
	})
	metrics.ObserveAnalysis(KindTechStack, mock)
	span.SetAttributes(attribute.Int("siteintel.count", len(results)), attribute.Bool("siteintel.mock", mock))
	logger.Info("tech stack analysis completed", zap.Int("count", len(results)), zap.Bool("mock", mock))

	return analytics.AnalysisResponse{
		Success: true,
		Data:    results,
		Count:   len(results),
		Note:    note,
	}, nil
}

func (s *Service) enrich(ctx context.Context, results []analytics.AnalysisResult) {
	if s.deps.Enricher == nil {
		return
	}
	s.deps.Enricher.EnrichResults(ctx, results)
}

func (s *Service) persist(ctx context.Context, logger *zap.Logger, userID string, results []analytics.AnalysisResult) bool {
	ctx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.deps.Store.SaveResults(ctx, userID, results); err != nil {
		metrics.ObservePersistenceFailure("store")
		logger.Error("persist results failed", zap.Error(err))
		return false
	}
	return true
}

func (s *Service) publish(ctx context.Context, logger *zap.Logger, event publisher.AnalysisCompleted) {
	if s.deps.Publisher == nil {
		return
	}
	event.Type = publisher.EventAnalysisCompleted
	if s.deps.IDs != nil {
		id, err := s.deps.IDs.NewID()
		if err != nil {
			logger.Warn("generate analysis id failed", zap.Error(err))
		}
		event.AnalysisID = id
	}
	if s.deps.Clock != nil {
		event.OccurredAt = s.deps.Clock.Now()
	} else {
		event.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, event)
	if err != nil {
		metrics.ObservePersistenceFailure("publisher")
		logger.Warn("publish completion event failed", zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", msgID), zap.String("analysis_id", event.AnalysisID))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsValidation reports whether err is a caller-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
