package apify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/poll"
)

const githubRecord = `{
  "name": "github.com", "globalRank": 64, "countryRank": 35, "categoryRank": 2,
  "companyName": "GitHub Inc.", "companyYearFounded": 2008, "companyEmployeesMin": 1000,
  "companyEmployeesMax": 5000, "totalVisits": 1200000000, "avgVisitDuration": "12:30",
  "pagesPerVisit": 6.8, "bounceRate": 0.28,
  "trafficSources": {"directVisitsShare": 0.55, "organicSearchVisitsShare": 0.3,
    "referralVisitsShare": 0.12, "socialNetworksVisitsShare": 0.02, "mailVisitsShare": 0.01,
    "paidSearchVisitsShare": 0, "adsVisitsShare": 0},
  "topCountries": [], "topKeywords": [], "socialNetworkDistribution": [],
  "topSimilarityCompetitors": [], "organicTraffic": 360000000, "paidTraffic": 0
}`

// fakeActor is an httptest stand-in for the job service.
type fakeActor struct {
	mu          sync.Mutex
	t           *testing.T
	startStatus int
	statuses    []string
	polls       int
	items       string
	itemsStatus int
	startBody   map[string]any
	authHeader  string
}

func (f *fakeActor) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/acts/actor-1/runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeader = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		require.NoError(f.t, json.Unmarshal(body, &f.startBody))
		status := f.startStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"READY","defaultDatasetId":"ds-1"}}`))
	})
	mux.HandleFunc("GET /v2/acts/actor-1/runs/run-1", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		status := f.statuses[len(f.statuses)-1]
		if f.polls < len(f.statuses) {
			status = f.statuses[f.polls]
		}
		f.polls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "run-1", "status": status, "defaultDatasetId": "ds-1"},
		})
	})
	mux.HandleFunc("GET /v2/datasets/ds-1/items", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.itemsStatus != 0 {
			w.WriteHeader(f.itemsStatus)
		}
		_, _ = w.Write([]byte(f.items))
	})
	return mux
}

func newTestClient(t *testing.T, actor *fakeActor, maxPolls int) *Client {
	t.Helper()
	actor.t = t
	srv := httptest.NewServer(actor.handler())
	t.Cleanup(srv.Close)
	return New(Config{
		Token:        "secret",
		BaseURL:      srv.URL + "/",
		ActorID:      "actor-1",
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	}, srv.Client(), zap.NewNop())
}

func TestAnalyzeDomainsSuccess(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{
		statuses: []string{"READY", "RUNNING", "SUCCEEDED"},
		items:    "[" + githubRecord + `, {"name": "broken"}]`,
	}
	client := newTestClient(t, actor, 10)

	res, err := client.AnalyzeDomains(context.Background(), []string{"https://www.github.com"})
	require.NoError(t, err)
	require.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Records, 1)
	require.EqualValues(t, 64, res.Records[0].GlobalRank)
	require.Equal(t, 1, res.Dropped)
	require.NotEmpty(t, res.Raw)

	actor.mu.Lock()
	defer actor.mu.Unlock()
	require.Equal(t, "Bearer secret", actor.authHeader)
	require.Equal(t, []any{"https://www.github.com"}, actor.startBody["websites"])
	require.EqualValues(t, 1, actor.startBody["maxPages"])
	require.Equal(t, 3, actor.polls)
}

func TestAnalyzeDomainsRunFailed(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{statuses: []string{"RUNNING", "FAILED"}}
	client := newTestClient(t, actor, 10)

	_, err := client.AnalyzeDomains(context.Background(), []string{"github.com"})
	require.ErrorIs(t, err, ErrRunFailed)
	var rf *RunFailedError
	require.True(t, errors.As(err, &rf))
	require.Equal(t, "FAILED", rf.Status)
}

func TestAnalyzeDomainsTimeout(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{statuses: []string{"RUNNING"}}
	client := newTestClient(t, actor, 3)

	_, err := client.AnalyzeDomains(context.Background(), []string{"github.com"})
	require.ErrorIs(t, err, poll.ErrTimeout)
	actor.mu.Lock()
	defer actor.mu.Unlock()
	require.Equal(t, 3, actor.polls)
}

func TestStartRunRejectsNon201(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{startStatus: http.StatusOK, statuses: []string{"SUCCEEDED"}}
	client := newTestClient(t, actor, 3)

	_, err := client.StartRun(context.Background(), []string{"github.com"})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "got %v", err)
	require.Equal(t, http.StatusOK, httpErr.StatusCode)
	require.Equal(t, "start run", httpErr.Op)
}

func TestFetchDatasetItemsErrors(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{statuses: []string{"SUCCEEDED"}, itemsStatus: http.StatusInternalServerError, items: "boom"}
	client := newTestClient(t, actor, 3)
	_, _, err := client.FetchDatasetItems(context.Background(), "ds-1")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, "boom", httpErr.Body)

	actor2 := &fakeActor{statuses: []string{"SUCCEEDED"}, items: `{"not":"an array"}`}
	client2 := newTestClient(t, actor2, 3)
	_, _, err = client2.FetchDatasetItems(context.Background(), "ds-1")
	require.Error(t, err)
}

func TestAnalyzeDomainsWithoutToken(t *testing.T) {
	t.Parallel()

	client := New(Config{}, nil, nil)
	require.False(t, client.Configured())
	_, err := client.AnalyzeDomains(context.Background(), []string{"github.com"})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestWaitForRunHonoursContext(t *testing.T) {
	t.Parallel()

	actor := &fakeActor{statuses: []string{"RUNNING"}}
	client := newTestClient(t, actor, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.WaitForRun(ctx, "run-1")
	require.Error(t, err)
	require.True(t, isTimeout(err) || errors.Is(err, context.Canceled), "got %v", err)
}
