// Package apify drives the SimilarWeb scraping actor on the Apify job service:
// start a run, wait for it, fetch its dataset and map the records.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/metrics"
	"github.com/JakeFAU/siteintel/internal/poll"
)

// Run statuses reported by the job service.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimingOut = "TIMING-OUT"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborting  = "ABORTING"
	StatusAborted   = "ABORTED"
)

// Defaults for the public Apify API and the SimilarWeb actor.
const (
	DefaultBaseURL  = "https://api.apify.com"
	DefaultActorID  = "heLi1j7hzjC2gFlIx"
	DefaultMaxPages = 1

	maxErrorBody = 2048
)

// Config describes how to reach the job service.
type Config struct {
	Token        string
	BaseURL      string
	ActorID      string
	MaxPages     int
	PollInterval time.Duration
	MaxPolls     int
}

// Run is the subset of run metadata the service needs.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Analysis is the outcome of a full start-wait-fetch-map cycle.
type Analysis struct {
	RunID   string
	Records []analytics.SiteMetrics
	Dropped int
	// Raw is the dataset payload exactly as returned by the job service.
	Raw []byte
}

// Client talks to the Apify REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	poller     *poll.Poller
	logger     *zap.Logger
}

// New constructs a Client. A nil httpClient falls back to http.DefaultClient.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ActorID == "" {
		cfg.ActorID = DefaultActorID
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poller := poll.New(cfg.PollInterval, cfg.MaxPolls,
		StatusReady, StatusRunning, StatusTimingOut, StatusAborting)
	poller.OnAttempt = func(attempt int, status string) {
		metrics.ObservePollAttempt(status)
		logger.Debug("run status", zap.Int("attempt", attempt), zap.String("status", status))
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		poller:     poller,
		logger:     logger,
	}
}

// Configured reports whether an API token is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Token != ""
}

type runInput struct {
	Websites []string `json:"websites"`
	MaxPages int      `json:"maxPages"`
}

type runEnvelope struct {
	Data Run `json:"data"`
}

// StartRun launches the actor for the given websites. Only 201 Created is accepted.
func (c *Client) StartRun(ctx context.Context, websites []string) (Run, error) {
	body, err := json.Marshal(runInput{Websites: websites, MaxPages: c.cfg.MaxPages})
	if err != nil {
		return Run{}, fmt.Errorf("marshal run input: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs", c.cfg.BaseURL, url.PathEscape(c.cfg.ActorID))
	var env runEnvelope
	if err := c.doJSON(ctx, "start run", http.MethodPost, endpoint, bytes.NewReader(body), http.StatusCreated, &env); err != nil {
		return Run{}, err
	}
	if env.Data.ID == "" {
		return Run{}, fmt.Errorf("apify start run: response missing run id")
	}
	c.logger.Info("run started", zap.String("run_id", env.Data.ID), zap.Strings("websites", websites))
	return env.Data, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs/%s", c.cfg.BaseURL,
		url.PathEscape(c.cfg.ActorID), url.PathEscape(runID))
	var env runEnvelope
	if err := c.doJSON(ctx, "get run", http.MethodGet, endpoint, nil, http.StatusOK, &env); err != nil {
		return Run{}, err
	}
	return env.Data, nil
}

// WaitForRun polls GetRun until the run leaves its in-progress states and
// returns the last observed run. poll.ErrTimeout is wrapped when attempts run out.
func (c *Client) WaitForRun(ctx context.Context, runID string) (Run, error) {
	var last Run
	_, err := c.poller.Wait(ctx, func(ctx context.Context) (string, error) {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return "", err
		}
		last = run
		return run.Status, nil
	})
	if err != nil {
		return last, fmt.Errorf("wait for run %s: %w", runID, err)
	}
	return last, nil
}

// FetchDatasetItems returns the raw items of a dataset along with the
// undecoded payload.
func (c *Client) FetchDatasetItems(ctx context.Context, datasetID string) ([]json.RawMessage, []byte, error) {
	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items", c.cfg.BaseURL, url.PathEscape(datasetID))
	payload, err := c.do(ctx, "fetch dataset", http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		return nil, nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, payload, fmt.Errorf("decode dataset items: %w", err)
	}
	return items, payload, nil
}

// AnalyzeDomains runs the whole cycle for websites. A run that ends in any
// status but SUCCEEDED yields a *RunFailedError.
func (c *Client) AnalyzeDomains(ctx context.Context, websites []string) (Analysis, error) {
	if !c.Configured() {
		return Analysis{}, ErrMissingToken
	}
	run, err := c.StartRun(ctx, websites)
	if err != nil {
		metrics.ObserveJobRun("error")
		return Analysis{}, err
	}
	run, err = c.WaitForRun(ctx, run.ID)
	if err != nil {
		metrics.ObserveJobRun(outcomeFor(err))
		return Analysis{RunID: run.ID}, err
	}
	if run.Status != StatusSucceeded {
		metrics.ObserveJobRun("failed")
		return Analysis{RunID: run.ID}, &RunFailedError{RunID: run.ID, Status: run.Status}
	}
	metrics.ObserveJobRun("succeeded")

	items, raw, err := c.FetchDatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return Analysis{RunID: run.ID}, err
	}
	mapped := analytics.MapRecords(items)
	for _, e := range mapped.Errors {
		c.logger.Warn("dropping invalid record", zap.String("run_id", run.ID), zap.Error(e))
	}
	metrics.ObserveDroppedRecords(mapped.Dropped)
	return Analysis{
		RunID:   run.ID,
		Records: mapped.Records,
		Dropped: mapped.Dropped,
		Raw:     raw,
	}, nil
}

func outcomeFor(err error) string {
	if err == nil {
		return "succeeded"
	}
	if isTimeout(err) {
		return "timeout"
	}
	return "error"
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body io.Reader, want int, out any) error {
	payload, err := c.do(ctx, op, method, endpoint, body, want)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("apify %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("apify %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apify %s: %w", op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apify %s: read response: %w", op, err)
	}
	if resp.StatusCode != want {
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(payload), maxErrorBody)}
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
