package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/builtwith"
	"github.com/JakeFAU/siteintel/internal/config"
	"github.com/JakeFAU/siteintel/internal/service"
	storememory "github.com/JakeFAU/siteintel/internal/store/memory"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	requests []analytics.AnalysisRequest
	resp     analytics.AnalysisResponse
	err      error
	panicMsg string
}

func (f *fakeAnalyzer) record(req analytics.AnalysisRequest) (analytics.AnalysisResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error) {
	return f.record(req)
}

func (f *fakeAnalyzer) AnalyzeTechStack(_ context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error) {
	return f.record(req)
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                  8000,
			RequestTimeoutSeconds: 30,
			CORSOrigins:           []string{"http://localhost:3000"},
		},
	}
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "SimilarWeb Analysis API", body["message"])
	require.Contains(t, body["usage"], "POST /api/analyze")

	rec = serve(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()
	_ = serve(t, h, http.MethodGet, "/health", "")

	rec := serve(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAnalyzePassesRequestThrough(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{resp: analytics.AnalysisResponse{
		Success: true,
		Data:    []analytics.AnalysisResult{{SiteMetrics: analytics.SiteMetrics{Name: "github.com"}}},
		Count:   1,
	}}
	h := NewServer(analyzer, testConfig(), zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodPost, "/api/analyze", `{"websites":["github.com"],"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, 1, body["count"])
	require.NotContains(t, body, "note")

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	require.Equal(t, []analytics.AnalysisRequest{{Websites: []string{"github.com"}, UserID: "u1"}}, analyzer.requests)
}

func TestAnalyzeBadRequests(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()
	testCases := []struct {
		name   string
		body   string
		detail string
	}{
		{"invalid json", "{invalid", "invalid JSON body"},
		{"empty body", "", "request body is required"},
		{"wrong type", `{"websites":"github.com"}`, "invalid JSON body"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, h, http.MethodPost, "/api/analyze", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tc.detail, decodeBody(t, rec)["detail"])
		})
	}
}

func TestAnalyzeValidationErrorMapsTo400(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{err: &service.ValidationError{Detail: service.DetailNoWebsites}}
	h := NewServer(analyzer, testConfig(), zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodPost, "/api/analyze-tech-stack", `{"websites":[],"userId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"detail":"Please provide an array of websites to analyze"}`, rec.Body.String())
}

func TestAnalyzeUnexpectedErrorMapsTo500(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{err: errors.New("boom")}
	h := NewServer(analyzer, testConfig(), zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodPost, "/api/analyze", `{"websites":["a.com"],"userId":"u1"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestPanicRecovered(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{panicMsg: "kaboom"}, testConfig(), zap.NewNop()).Handler()
	rec := serve(t, h, http.MethodPost, "/api/analyze", `{"websites":["a.com"],"userId":"u1"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightSkipsAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	h := NewServer(&fakeAnalyzer{}, cfg, zap.NewNop()).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze-tech-stack", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOriginLists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		want    string
	}{
		{"wildcard echoes origin", []string{"*"}, "https://app.example.com"},
		{"trailing slash ignored", []string{"https://app.example.com/"}, "https://app.example.com"},
		{"empty list allows nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.Server.CORSOrigins = tt.origins
			h := NewServer(&fakeAnalyzer{}, cfg, zap.NewNop()).Handler()

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://app.example.com")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestBareOptionsReturnsOK(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	h := NewServer(&fakeAnalyzer{}, cfg, zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodOptions, "/api/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"OK"}`, rec.Body.String())
}

func TestCORSSimpleRequest(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestAPIKeyRequiredWhenEnabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	h := NewServer(&fakeAnalyzer{resp: analytics.AnalysisResponse{Success: true}}, cfg, zap.NewNop()).Handler()
	body := `{"websites":["a.com"],"userId":"u1"}`

	rec := serve(t, h, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodPost, "/api/analyze?api_key=secret", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	t.Parallel()

	h := NewServer(&fakeAnalyzer{}, testConfig(), zap.NewNop()).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestAnalyzeEndToEndWithMockData(t *testing.T) {
	t.Parallel()

	svc := service.New(service.Deps{
		Enricher: builtwith.NewEnricher(nil, zap.NewNop()),
		Store:    storememory.New(),
	}, service.Config{}, zap.NewNop())
	h := NewServer(svc, testConfig(), zap.NewNop()).Handler()

	rec := serve(t, h, http.MethodPost, "/api/analyze", `{"websites":["https://www.github.com"],"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analytics.AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Count)
	require.Contains(t, resp.Note, "mock data")
	require.EqualValues(t, 64, resp.Data[0].GlobalRank)
	require.NotNil(t, resp.Data[0].BuiltWith)

	rec = serve(t, h, http.MethodPost, "/api/analyze", `{"websites":[],"userId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, service.DetailNoWebsites, decodeBody(t, rec)["detail"])
}
