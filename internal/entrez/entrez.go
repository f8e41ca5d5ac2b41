// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package entrez is a client for NCBI's E-utilities (esearch, efetch).
// Every request identifies the caller with tool, email and api_key, and is
// paced to NCBI's published limits: 3 requests/s without an API key and
// 10 requests/s with one.
package entrez

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/pubmed-assistant/internal/httputil"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/metrics"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// DefaultBaseURL is the E-utilities root.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

// NCBI request rate policy.
const (
	anonymousRate = 3.0
	keyedRate     = 10.0
)

// maxBodyBytes bounds a single response. Full-text JATS documents run to a
// few megabytes.
const maxBodyBytes = 64 << 20

var (
	// ErrUnavailable marks throttling or server-side failures (429, 5xx)
	// that persisted through retries.
	ErrUnavailable = errors.New("e-utilities unavailable")

	// ErrRequest marks requests NCBI rejected (other 4xx, or an ERROR
	// field in the result).
	ErrRequest = errors.New("e-utilities request rejected")
)

// Client calls the E-utilities endpoints. Construct it with New.
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	tool       string
	userAgent  string
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
}

// New builds a Client from cfg. A nil httpClient uses one with cfg.Timeout.
func New(cfg types.EntrezConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = anonymousRate
		if cfg.APIKey != "" {
			rps = keyedRate
		}
	}

	return &Client{
		baseURL:    baseURL,
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		tool:       cfg.Tool,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		client:     httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Rate returns the request rate the client paces itself to.
func (c *Client) Rate() float64 {
	return float64(c.limiter.Limit())
}

// searchResponse is the esearch JSON envelope (retmode=json).
type searchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
	Error string `json:"error"`
}

// SearchResult holds the ranked ids of an esearch call.
type SearchResult struct {
	// Count is the total number of matches in the database.
	Count int
	// IDs are the first retmax UIDs in relevance order.
	IDs []string
}

// Search runs esearch against db and returns at most retmax UIDs in
// NCBI's relevance order. No matches yields an empty result, not an error.
func (c *Client) Search(ctx context.Context, db, term string, retmax int) (SearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return SearchResult{}, fmt.Errorf("esearch: empty term: %w", ErrRequest)
	}
	if retmax <= 0 {
		retmax = 20
	}

	params := url.Values{
		"db":      {db},
		"term":    {term},
		"retmax":  {strconv.Itoa(retmax)},
		"retmode": {"json"},
	}

	body, err := c.get(ctx, "esearch", params)
	if err != nil {
		return SearchResult{}, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return SearchResult{}, fmt.Errorf("parsing esearch response: %w", err)
	}
	if sr.Error != "" {
		return SearchResult{}, fmt.Errorf("esearch: %s: %w", sr.Error, ErrRequest)
	}
	if sr.Result.Error != "" {
		return SearchResult{}, fmt.Errorf("esearch: %s: %w", sr.Result.Error, ErrRequest)
	}

	count, _ := strconv.Atoi(sr.Result.Count)
	ids := sr.Result.IDList
	if ids == nil {
		ids = []string{}
	}
	return SearchResult{Count: count, IDs: ids}, nil
}

// Fetch runs efetch for one UID and returns the full XML record.
func (c *Client) Fetch(ctx context.Context, db, id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("efetch: empty id: %w", ErrRequest)
	}
	params := url.Values{
		"db":      {db},
		"id":      {id},
		"rettype": {"full"},
		"retmode": {"xml"},
	}
	return c.get(ctx, "efetch", params)
}

// get issues a paced, retried GET to <base><endpoint>.fcgi.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	c.identify(params)
	reqURL := c.baseURL + endpoint + ".fcgi?" + params.Encode()

	start := time.Now()
	body, status, err := c.do(ctx, reqURL)
	metrics.EntrezRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.EntrezRequestsTotal.WithLabelValues(endpoint, statusLabel(status, err)).Inc()

	logger.FromContext(ctx).Debug("e-utilities request",
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)

	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return nil, 0, fmt.Errorf("e-utilities request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading e-utilities response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sentinel := ErrRequest
		if httputil.Retryable(resp.StatusCode) || resp.StatusCode >= 500 {
			sentinel = ErrUnavailable
		}
		return nil, resp.StatusCode, fmt.Errorf("e-utilities returned HTTP %d: %s: %w",
			resp.StatusCode, snippet(body), sentinel)
	}
	return body, resp.StatusCode, nil
}

// identify adds the caller identity NCBI asks every client to send.
func (c *Client) identify(params url.Values) {
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
}

func statusLabel(status int, err error) string {
	if status == 0 {
		return metrics.Outcome(err)
	}
	return strconv.Itoa(status)
}

// snippet trims an error body for inclusion in an error message.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
