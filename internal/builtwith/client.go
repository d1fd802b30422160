// Package builtwith looks up the technology stack of a domain and enriches
// analysis results with it, falling back to canned profiles on any failure.
package builtwith

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/siteintel/internal/analytics"
)

// DefaultBaseURL is the public BuiltWith API.
const DefaultBaseURL = "https://api.builtwith.com"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 30 * time.Second

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("builtwith: api key not configured")
	// ErrNoTechnologies is returned when a response yields no technology entries.
	ErrNoTechnologies = errors.New("builtwith: no technologies in response")
)

// HTTPError reports a non-200 lookup response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("builtwith: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config controls the lookup client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the BuiltWith domain API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient falls back to http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Lookup fetches and parses the technology profile for domain.
func (c *Client) Lookup(ctx context.Context, domain string) (analytics.TechProfile, error) {
	domain = analytics.CleanDomain(domain)
	if c.cfg.APIKey == "" {
		return analytics.TechProfile{}, ErrMissingAPIKey
	}
	if domain == "" {
		return analytics.TechProfile{}, fmt.Errorf("builtwith: empty domain")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("KEY", c.cfg.APIKey)
	q.Set("LOOKUP", domain)
	endpoint := c.cfg.BaseURL + "/v21/api.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analytics.TechProfile{}, fmt.Errorf("builtwith: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analytics.TechProfile{}, fmt.Errorf("builtwith lookup %s: %w", domain, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return analytics.TechProfile{}, fmt.Errorf("builtwith lookup %s: read body: %w", domain, err)
	}
	if resp.StatusCode != http.StatusOK {
		return analytics.TechProfile{}, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 1024)}
	}
	techs, err := ParseTechnologies(body)
	if err != nil {
		return analytics.TechProfile{}, fmt.Errorf("builtwith lookup %s: %w", domain, err)
	}
	return analytics.TechProfile{Domain: domain, Technologies: techs}, nil
}

// ParseTechnologies walks Results[].Result.Paths[].Technologies[] and collects
// {Name, Tag} pairs, de-duplicated by name in first-seen order. Missing, null
// or mistyped nodes are skipped rather than treated as fatal.
func ParseTechnologies(body []byte) ([]analytics.Technology, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	seen := make(map[string]struct{})
	var out []analytics.Technology
	for _, result := range asObjects(root["Results"]) {
		inner, _ := result["Result"].(map[string]any)
		for _, path := range asObjects(inner["Paths"]) {
			for _, tech := range asObjects(path["Technologies"]) {
				name, _ := tech["Name"].(string)
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				tag, _ := tech["Tag"].(string)
				out = append(out, analytics.Technology{Name: name, Tag: tag})
			}
		}
	}
	if len(out) == 0 {
		if msg := firstErrorMessage(root["Errors"]); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoTechnologies, msg)
		}
		return nil, ErrNoTechnologies
	}
	return out, nil
}

func asObjects(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstErrorMessage(v any) string {
	for _, e := range asObjects(v) {
		if msg, ok := e["Message"].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
