package medium

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"crosspost/internal/domain"
	"crosspost/internal/platform"
)

const PlatformName = "medium"

const defaultBaseURL = "https://api.medium.com"

// Config holds Medium adapter configuration. BaseURL is overridable for
// tests; it defaults to the public API.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Adapter publishes to Medium over its v1 REST API with integration-token
// Bearer auth. Medium has no native scheduling and no post-update API; both
// report a structured unsupported_operation result.
type Adapter struct {
	client *platform.Client
	logger *slog.Logger

	mu     sync.Mutex
	userID string
}

// New creates a Medium adapter.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{
		client: platform.NewClient(PlatformName, platform.ClientConfig{
			BaseURL:        cfg.BaseURL,
			Timeout:        cfg.Timeout,
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}, logger),
		logger: logger.With("platform", PlatformName),
	}
}

func (a *Adapter) Name() string {
	return PlatformName
}

func (a *Adapter) Capabilities() domain.PlatformCapabilities {
	return domain.PlatformCapabilities{
		MaxContentLength:     60000,
		MaxTitleLength:       100,
		MaxDescriptionLength: 140,
		SupportedFormats:     []domain.ContentFormat{domain.FormatMarkdown, domain.FormatHTML},
		SupportsMedia:        true,
		SupportsScheduling:   false,
		SupportsAnalytics:    false,
		MaxTags:              5,
		MaxCategories:        0,
	}
}

type meResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type postRequest struct {
	Title         string   `json:"title"`
	ContentFormat string   `json:"contentFormat"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags,omitempty"`
	CanonicalURL  string   `json:"canonicalUrl,omitempty"`
	PublishStatus string   `json:"publishStatus,omitempty"`
}

type postResponse struct {
	Data struct {
		ID          string `json:"id"`
		URL         string `json:"url"`
		PublishedAt int64  `json:"publishedAt"`
	} `json:"data"`
}

// Authenticate verifies the integration token against /v1/me. Idempotent.
func (a *Adapter) Authenticate(ctx context.Context, creds platform.Credentials) (*domain.AuthResult, error) {
	if creds.Type != platform.CredentialAPIToken && creds.Type != platform.CredentialIntegrationToken {
		return nil, domain.NewPublishError(domain.CodeAuth, PlatformName,
			fmt.Sprintf("unsupported credential type %q", creds.Type))
	}
	if creds.AccessToken == "" {
		return nil, domain.NewPublishError(domain.CodeAuth, PlatformName, "access token is required")
	}

	token := creds.AccessToken
	a.client.SetAuth(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})

	var me meResponse
	if err := a.client.Get(ctx, "/v1/me", &me); err != nil {
		a.client.SetAuth(nil)
		return nil, fmt.Errorf("verify token: %w", err)
	}

	a.mu.Lock()
	a.userID = me.Data.ID
	a.mu.Unlock()

	a.logger.Info("authenticated", "user", me.Data.Username)

	return &domain.AuthResult{Success: true, Identity: me.Data.Username}, nil
}

func (a *Adapter) Publish(ctx context.Context, formatted *domain.FormattedContent, opts domain.PublishOptions) (*domain.PublishResult, error) {
	userID, err := a.requireAuth()
	if err != nil {
		return nil, err
	}

	start := time.Now()

	contentFormat := "markdown"
	if formatted.Format == domain.FormatHTML {
		contentFormat = "html"
	}

	status := opts.Status
	if status == "" {
		status = "public"
	}
	if status == "publish" {
		status = "public"
	}

	tags := formatted.Tags
	if len(opts.Tags) > 0 {
		tags = opts.Tags
	}
	if max := a.Capabilities().MaxTags; len(tags) > max {
		tags = tags[:max]
	}

	req := postRequest{
		Title:         formatted.Title,
		ContentFormat: contentFormat,
		Content:       formatted.Body,
		Tags:          tags,
		CanonicalURL:  formatted.SEO.CanonicalURL,
		PublishStatus: status,
	}

	var resp postResponse
	path := "/v1/users/" + userID + "/posts"
	if err := a.client.Do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	a.logger.Debug("post created", "post_id", resp.Data.ID, "url", resp.Data.URL)

	publishedAt := time.Now().UTC()
	if resp.Data.PublishedAt > 0 {
		publishedAt = time.UnixMilli(resp.Data.PublishedAt).UTC()
	}

	return &domain.PublishResult{
		Platform:    PlatformName,
		Success:     true,
		ExternalID:  resp.Data.ID,
		URL:         resp.Data.URL,
		PublishedAt: publishedAt,
		Duration:    time.Since(start),
	}, nil
}

// Update is not available in the Medium v1 API; callers get a structured
// unsupported result rather than a silent failure.
func (a *Adapter) Update(_ context.Context, externalID string, _ *domain.FormattedContent, _ domain.PublishOptions) (*domain.PublishResult, error) {
	res := domain.FailedResult(PlatformName,
		domain.NewPublishError(domain.CodeUnsupportedOp, PlatformName, "medium does not support updating posts"))
	res.ExternalID = externalID
	return &res, nil
}

func (a *Adapter) Delete(ctx context.Context, externalID string) (*domain.PublishResult, error) {
	if _, err := a.requireAuth(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := a.client.Do(ctx, http.MethodDelete, "/v1/posts/"+externalID, nil, nil); err != nil {
		return nil, err
	}

	return &domain.PublishResult{
		Platform:   PlatformName,
		Success:    true,
		ExternalID: externalID,
		Duration:   time.Since(start),
	}, nil
}

// Schedule reports a structured unsupported result: Medium has no native
// scheduling, so the caller falls back to the generic scheduler.
func (a *Adapter) Schedule(_ context.Context, _ *domain.FormattedContent, _ time.Time, _ domain.PublishOptions) (*domain.PublishResult, error) {
	res := domain.FailedResult(PlatformName,
		domain.NewPublishError(domain.CodeUnsupportedOp, PlatformName, "medium does not support native scheduling"))
	return &res, nil
}

// Analytics degrades to an estimated zero result: the v1 API exposes no
// analytics.
func (a *Adapter) Analytics(_ context.Context, tr domain.TimeRange) (*domain.PlatformAnalytics, error) {
	return &domain.PlatformAnalytics{
		Platform:  PlatformName,
		Estimated: true,
		Range:     tr,
	}, nil
}

func (a *Adapter) ContentAnalytics(_ context.Context, externalID string, tr domain.TimeRange) (*domain.ContentAnalytics, error) {
	return &domain.ContentAnalytics{
		Platform:   PlatformName,
		ExternalID: externalID,
		Estimated:  true,
		Range:      tr,
	}, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) domain.PlatformHealth {
	start := time.Now()
	health := domain.PlatformHealth{
		Platform:  PlatformName,
		Status:    domain.HealthHealthy,
		CheckedAt: start,
	}

	var me meResponse
	err := a.client.Get(ctx, "/v1/me", &me)
	health.ResponseTime = time.Since(start)

	if err != nil {
		pe := domain.AsPublishError(err, PlatformName)
		if pe.Code == domain.CodeRateLimit {
			health.Status = domain.HealthDegraded
			health.Warnings = append(health.Warnings, err.Error())
		} else {
			health.Status = domain.HealthUnhealthy
			health.Errors = append(health.Errors, err.Error())
		}
	}

	return health
}

func (a *Adapter) RateLimit() domain.RateLimit {
	return a.client.RateLimit()
}

func (a *Adapter) requireAuth() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userID == "" {
		return "", domain.NewPublishError(domain.CodeAuth, PlatformName, "adapter is not authenticated")
	}
	return a.userID, nil
}
