package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"crosspost/internal/domain"
)

// ClientConfig holds the shared HTTP settings for an adapter.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client is the shared JSON round-trip helper adapters build on: bounded
// timeout, retry with capped exponential backoff on retryable failures, and
// status-to-error-code mapping. Auth is injected per adapter.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	platform       string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	mu        sync.Mutex
	auth      func(*http.Request)
	rateLimit domain.RateLimit
}

// NewClient builds a Client for one platform.
func NewClient(platform string, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		platform:       platform,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("platform", platform),
	}
}

// SetAuth installs the request decorator applied to every call.
func (c *Client) SetAuth(fn func(*http.Request)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = fn
}

// RateLimit returns the last quota state observed on any response.
func (c *Client) RateLimit() domain.RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

// Do performs one logical JSON request with retries on retryable failures.
// Non-retryable failures (auth, validation, not found) surface immediately.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.doRequest(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}

		pe := domain.AsPublishError(lastErr, c.platform)
		if !pe.Retryable() || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		if pe.RetryAfter > backoff {
			backoff = pe.RetryAfter
		}
		c.logger.Warn("request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return &domain.PublishError{
				Code:     domain.CodeNetwork,
				Platform: c.platform,
				Message:  "request cancelled",
				Err:      ctx.Err(),
			}
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// Get is shorthand for a bodyless GET.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &domain.PublishError{
				Code:     domain.CodeValidation,
				Platform: c.platform,
				Message:  fmt.Sprintf("encode request body: %v", err),
				Err:      err,
			}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.PublishError{
			Code:     domain.CodeValidation,
			Platform: c.platform,
			Message:  fmt.Sprintf("create request: %v", err),
			Err:      err,
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Crosspost/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	auth := c.auth
	c.mu.Unlock()
	if auth != nil {
		auth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.PublishError{
			Code:     domain.CodeNetwork,
			Platform: c.platform,
			Message:  fmt.Sprintf("execute request: %v", err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	c.recordRateLimit(resp)

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.PublishError{
				Code:     domain.CodeNetwork,
				Platform: c.platform,
				Message:  fmt.Sprintf("decode response: %v", err),
				Err:      err,
			}
		}
	}

	return nil
}

func (c *Client) statusError(resp *http.Response) *domain.PublishError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	pe := &domain.PublishError{Platform: c.platform, Message: msg}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		pe.Code = domain.CodeAuth
	case resp.StatusCode == http.StatusNotFound:
		pe.Code = domain.CodeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Code = domain.CodeRateLimit
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		pe.Code = domain.CodeNetwork
	default:
		pe.Code = domain.CodeValidation
	}

	return pe
}

func (c *Client) recordRateLimit(resp *http.Response) {
	limit, errL := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, errR := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if errL != nil && errR != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if errL == nil {
		c.rateLimit.Limit = limit
	}
	if errR == nil {
		c.rateLimit.Remaining = remaining
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		c.rateLimit.ResetTime = time.Unix(reset, 0)
	}
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
