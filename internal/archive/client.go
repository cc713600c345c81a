// Package archive provides the client for the astronomy picture-of-the-day archive.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/stargaze/internal/metrics"
	"github.com/hyperjump/stargaze/internal/models"
	"github.com/hyperjump/stargaze/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://api.nasa.gov"
	defaultUserAgent = "stargaze"
	apodPath         = "/planetary/apod"
	maxBodyBytes     = 16 << 20
)

// ErrDecode is returned when the archive answers with something other than a JSON array.
var ErrDecode = errors.New("archive response is not a JSON array")

// StatusError is returned for a non-2xx archive response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("archive returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("archive returned %d", e.StatusCode)
}

// Options configures the Client.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// Timeout bounds a whole request; zero leaves it to the caller's context.
	Timeout time.Duration
}

// Client fetches image records for a date range. There is no retry: a failed request
// is terminal for that search.
type Client struct {
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	baseURL string
	apiKey  string
	ua      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithMetrics records fetch outcomes in m.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. A nil logger disables logging.
func NewClient(o Options, logger *zap.Logger, opts ...ClientOption) *Client {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:    &http.Client{Timeout: o.Timeout},
		logger:  logger,
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		apiKey:  o.APIKey,
		ua:      o.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey replaces the key used by subsequent fetches.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// SetBaseURL replaces the archive host used by subsequent fetches.
func (c *Client) SetBaseURL(base string) {
	if base == "" {
		base = defaultBaseURL
	}
	c.mu.Lock()
	c.baseURL = strings.TrimRight(base, "/")
	c.mu.Unlock()
}

// RequestURL builds the archive query for r.
func (c *Client) RequestURL(r models.DateRange) string {
	c.mu.RLock()
	base, key := c.baseURL, c.apiKey
	c.mu.RUnlock()
	q := url.Values{}
	q.Set("api_key", key)
	q.Set("start_date", r.StartString())
	q.Set("end_date", r.EndString())
	return base + apodPath + "?" + q.Encode()
}

// Fetch issues one GET for the range and returns the image entries in archive order.
// Zero images yields an empty slice and a nil error.
func (c *Client) Fetch(ctx context.Context, r models.DateRange) ([]models.ImageRecord, error) {
	start := time.Now()
	entries, err := c.fetchEntries(ctx, r)
	if err != nil {
		c.metrics.ObserveFetch(metrics.OutcomeError, time.Since(start), 0, 0)
		return nil, err
	}
	records := FilterImages(entries)
	dropped := len(entries) - len(records)
	if dropped > 0 {
		c.logger.Debug("archive non-image entries dropped",
			zap.String("range", r.String()),
			zap.Int("dropped", dropped))
	}
	outcome := metrics.OutcomeOK
	if len(records) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	c.metrics.ObserveFetch(outcome, time.Since(start), len(records), dropped)
	c.logger.Debug("archive fetch complete",
		zap.String("range", r.String()),
		zap.Int("entries", len(entries)),
		zap.Int("images", len(records)),
		zap.Duration("latency", time.Since(start)))
	return records, nil
}

func (c *Client) fetchEntries(ctx context.Context, r models.DateRange) ([]models.ArchiveEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(r), nil)
	if err != nil {
		return nil, fmt.Errorf("archive new request: %w", err)
	}
	c.mu.RLock()
	req.Header.Set("User-Agent", c.ua)
	c.mu.RUnlock()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("archive close body failed", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("archive read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var entries []models.ArchiveEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if entries == nil {
		// "null" decodes without error but is not an array either.
		return nil, ErrDecode
	}
	return entries, nil
}

// FilterImages keeps image entries, in order, and maps them to records.
func FilterImages(entries []models.ArchiveEntry) []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsImage() {
			out = append(out, e.Record())
		}
	}
	return out
}

// errorMessage extracts "msg" (or the nested error.message) from an archive error body.
func errorMessage(body []byte) string {
	var apiErr struct {
		Msg   string `json:"msg"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return utils.Truncate(strings.TrimSpace(string(body)), 256)
	}
	if apiErr.Msg != "" {
		return apiErr.Msg
	}
	return apiErr.Error.Message
}
