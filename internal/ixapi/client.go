// Package ixapi is a minimal client for the IX-API, the provisioning API
// offered by internet exchanges.
package ixapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the endpoint rejects the credentials.
var ErrUnauthorized = errors.New("ix-api: unauthorized")

// Account is an IX-API account as returned by the endpoint.
type Account map[string]any

// Client talks to one IX-API endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a client for the endpoint at baseURL.
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		logger:     logger,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticate exchanges the API key and secret for an access token.
func (c *Client) Authenticate(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"api_key": c.apiKey, "api_secret": c.apiSecret})
	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/token", bytes.NewReader(body), "", &tok); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("authenticate: %w: empty access token", ErrUnauthorized)
	}
	c.mu.Lock()
	c.token = tok.AccessToken
	c.mu.Unlock()
	return nil
}

// Accounts lists the accounts visible to the authenticated identity,
// authenticating first when needed.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
	}

	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, token, &accounts); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, token string, result any) error {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("ix-api request",
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
