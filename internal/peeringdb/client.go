// Package peeringdb is a read-only client for the PeeringDB REST API. It
// maps remote records to importable internet exchanges and peers.
package peeringdb

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

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when PeeringDB has no record for a lookup.
var ErrNotFound = errors.New("peeringdb: record not found")

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "peeringmanager",
		Name:      "peeringdb_requests_total",
		Help:      "PeeringDB API lookups by result (hit, ok, error).",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(requestsTotal)
}

// Client wraps the PeeringDB REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	cache       *cache.Cache
	limiter     *rate.Limiter
	concurrency int
	logger      *zap.Logger
}

// NewClient creates a new PeeringDB API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	var c *cache.Cache
	if cfg.CacheTTL > 0 {
		c = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		cache:       c,
		limiter:     rate.NewLimiter(limit, max(1, int(cfg.RateLimit))),
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// GetNetwork returns the network record for asn.
func (c *Client) GetNetwork(ctx context.Context, asn int64) (*Network, error) {
	var resp response[Network]
	if err := c.get(ctx, "/net", url.Values{"asn": {strconv.FormatInt(asn, 10)}}, &resp); err != nil {
		return nil, fmt.Errorf("get network AS%d: %w", asn, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("network AS%d: %w", asn, ErrNotFound)
	}
	return &resp.Data[0], nil
}

// GetIXNetworksForASN returns every exchange LAN presence of asn.
func (c *Client) GetIXNetworksForASN(ctx context.Context, asn int64) ([]NetworkIXLan, error) {
	var resp response[NetworkIXLan]
	if err := c.get(ctx, "/netixlan", url.Values{"asn": {strconv.FormatInt(asn, 10)}}, &resp); err != nil {
		return nil, fmt.Errorf("list netixlan for AS%d: %w", asn, err)
	}
	return resp.Data, nil
}

// GetIXNetwork returns one netixlan record.
func (c *Client) GetIXNetwork(ctx context.Context, id int64) (*NetworkIXLan, error) {
	var resp response[NetworkIXLan]
	if err := c.get(ctx, "/netixlan/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return nil, fmt.Errorf("get netixlan %d: %w", id, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("netixlan %d: %w", id, ErrNotFound)
	}
	return &resp.Data[0], nil
}

// GetPeersForIX returns every netixlan record on exchange ixID.
func (c *Client) GetPeersForIX(ctx context.Context, ixID int64) ([]NetworkIXLan, error) {
	var resp response[NetworkIXLan]
	if err := c.get(ctx, "/netixlan", url.Values{"ix_id": {strconv.FormatInt(ixID, 10)}}, &resp); err != nil {
		return nil, fmt.Errorf("list peers for ix %d: %w", ixID, err)
	}
	return resp.Data, nil
}

// GetIX returns one exchange record.
func (c *Client) GetIX(ctx context.Context, id int64) (*IX, error) {
	var resp response[IX]
	if err := c.get(ctx, "/ix/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return nil, fmt.Errorf("get ix %d: %w", id, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("ix %d: %w", id, ErrNotFound)
	}
	return &resp.Data[0], nil
}

// get performs a rate limited, cached GET and decodes the JSON body into
// result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.cache != nil {
		if body, ok := c.cache.Get(u); ok {
			requestsTotal.WithLabelValues("hit").Inc()
			return json.Unmarshal(body.([]byte), result)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := c.fetch(ctx, u)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return err
	}
	requestsTotal.WithLabelValues("ok").Inc()

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if c.cache != nil {
		c.cache.SetDefault(u, body)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("peeringdb request",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("peeringdb API GET %s returned %d: %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
