package ratefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/usecase"
)

// latestResponse is the feed payload: rates quoted as "1 base = X code".
type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Client implements usecase.RateSource against an HTTP JSON feed exposing
// GET {baseURL}/latest?base=CODE.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxElapsed time.Duration
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithMaxElapsed bounds the total time spent retrying one fetch.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// NewClient creates a new feed client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxElapsed: 30 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the current quote for base. Server errors and transport
// failures are retried with exponential backoff; client errors are not.
func (c *Client) Latest(ctx context.Context, base string) (*usecase.RateQuote, error) {
	endpoint := c.baseURL + "/latest?base=" + url.QueryEscape(base)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = c.maxElapsed

	var body latestResponse
	err := backoff.Retry(func() error {
		resp, err := c.fetch(ctx, endpoint)
		if err != nil {
			return err
		}
		body = *resp
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}

	asOf := c.now()
	if body.Date != "" {
		if d, err := time.Parse(time.DateOnly, body.Date); err == nil {
			asOf = d
		}
	}

	return &usecase.RateQuote{
		Base:   strings.ToUpper(body.Base),
		Rates:  body.Rates,
		AsOf:   asOf,
		Source: c.baseURL,
	}, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*latestResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate feed returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("rate feed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode rate feed: %w", err))
	}
	return &out, nil
}
