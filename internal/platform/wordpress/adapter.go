package wordpress

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"crosspost/internal/domain"
	"crosspost/internal/platform"
)

const PlatformName = "wordpress"

// degradedThreshold marks a reachable but slow site in health checks.
const degradedThreshold = 2 * time.Second

// Config holds WordPress adapter configuration.
type Config struct {
	SiteURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Adapter publishes to a self-hosted WordPress site over the REST v2 API
// using application-password Basic auth.
type Adapter struct {
	client *platform.Client
	logger *slog.Logger

	mu            sync.Mutex
	authenticated bool
	identity      string
}

// New creates a WordPress adapter for one site.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: platform.NewClient(PlatformName, platform.ClientConfig{
			BaseURL:        cfg.SiteURL,
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
		MaxContentLength:     100000,
		MaxTitleLength:       150,
		MaxDescriptionLength: 155,
		SupportedFormats:     []domain.ContentFormat{domain.FormatHTML},
		SupportsMedia:        true,
		SupportsScheduling:   true,
		SupportsAnalytics:    false,
		MaxTags:              15,
		MaxCategories:        10,
	}
}

// Authenticate verifies the application password against /users/me and
// installs Basic auth on the shared client. Safe to call repeatedly.
func (a *Adapter) Authenticate(ctx context.Context, creds platform.Credentials) (*domain.AuthResult, error) {
	if creds.Type != platform.CredentialApplicationPassword {
		return nil, domain.NewPublishError(domain.CodeAuth, PlatformName,
			fmt.Sprintf("unsupported credential type %q", creds.Type))
	}
	if creds.Username == "" || creds.AppPassword == "" {
		return nil, domain.NewPublishError(domain.CodeAuth, PlatformName, "username and app password are required")
	}

	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.AppPassword))
	a.client.SetAuth(func(req *http.Request) {
		req.Header.Set("Authorization", "Basic "+token)
	})

	var user wpUser
	if err := a.client.Get(ctx, "/wp-json/wp/v2/users/me?context=edit", &user); err != nil {
		a.client.SetAuth(nil)
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	a.mu.Lock()
	a.authenticated = true
	a.identity = user.Name
	a.mu.Unlock()

	a.logger.Info("authenticated", "user", user.Name)

	return &domain.AuthResult{Success: true, Identity: user.Name}, nil
}

func (a *Adapter) Publish(ctx context.Context, formatted *domain.FormattedContent, opts domain.PublishOptions) (*domain.PublishResult, error) {
	return a.createPost(ctx, formatted, opts, "", time.Time{})
}

func (a *Adapter) Update(ctx context.Context, externalID string, formatted *domain.FormattedContent, opts domain.PublishOptions) (*domain.PublishResult, error) {
	return a.createPost(ctx, formatted, opts, externalID, time.Time{})
}

// Schedule uses WordPress native scheduling: a future-dated post with
// status "future".
func (a *Adapter) Schedule(ctx context.Context, formatted *domain.FormattedContent, at time.Time, opts domain.PublishOptions) (*domain.PublishResult, error) {
	return a.createPost(ctx, formatted, opts, "", at)
}

func (a *Adapter) createPost(ctx context.Context, formatted *domain.FormattedContent, opts domain.PublishOptions, externalID string, scheduleAt time.Time) (*domain.PublishResult, error) {
	if err := a.requireAuth(); err != nil {
		return nil, err
	}

	start := time.Now()

	tags := formatted.Tags
	if len(opts.Tags) > 0 {
		tags = opts.Tags
	}
	tagIDs, err := a.ensureTags(ctx, tags)
	if err != nil {
		// Tag resolution is auxiliary; publish the post without tags.
		a.logger.Warn("tag resolution failed, publishing without tags", "error", err)
		tagIDs = nil
	}

	status := opts.Status
	if status == "" {
		status = "publish"
	}

	req := wpPostRequest{
		Title:   formatted.Title,
		Content: formatted.Body,
		Excerpt: formatted.Excerpt,
		Status:  status,
		Tags:    tagIDs,
	}
	if !scheduleAt.IsZero() {
		req.Status = "future"
		req.Date = scheduleAt.UTC().Format("2006-01-02T15:04:05")
	}

	path := "/wp-json/wp/v2/posts"
	if externalID != "" {
		path += "/" + externalID
	}

	var post wpPost
	if err := a.client.Do(ctx, http.MethodPost, path, req, &post); err != nil {
		return nil, err
	}

	a.logger.Debug("post saved",
		"post_id", post.ID,
		"status", post.Status,
		"url", post.Link,
	)

	return &domain.PublishResult{
		Platform:    PlatformName,
		Success:     true,
		ExternalID:  strconv.FormatInt(post.ID, 10),
		URL:         post.Link,
		PublishedAt: time.Now().UTC(),
		Duration:    time.Since(start),
	}, nil
}

func (a *Adapter) Delete(ctx context.Context, externalID string) (*domain.PublishResult, error) {
	if err := a.requireAuth(); err != nil {
		return nil, err
	}

	start := time.Now()
	path := "/wp-json/wp/v2/posts/" + externalID + "?force=true"
	if err := a.client.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return nil, err
	}

	return &domain.PublishResult{
		Platform:   PlatformName,
		Success:    true,
		ExternalID: externalID,
		Duration:   time.Since(start),
	}, nil
}

// Analytics degrades to an estimated zero result: stock WordPress exposes no
// analytics API.
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

	var root struct {
		Name string `json:"name"`
	}
	err := a.client.Get(ctx, "/wp-json", &root)
	health.ResponseTime = time.Since(start)

	switch {
	case err != nil:
		health.Status = domain.HealthUnhealthy
		health.Errors = append(health.Errors, err.Error())
	case health.ResponseTime > degradedThreshold:
		health.Status = domain.HealthDegraded
		health.Warnings = append(health.Warnings, fmt.Sprintf("slow response: %s", health.ResponseTime))
	}

	return health
}

func (a *Adapter) RateLimit() domain.RateLimit {
	return a.client.RateLimit()
}

// ensureTags resolves tag names to WordPress term IDs, creating missing ones.
func (a *Adapter) ensureTags(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var found []wpTag
		path := "/wp-json/wp/v2/tags?search=" + url.QueryEscape(name)
		if err := a.client.Get(ctx, path, &found); err != nil {
			return nil, fmt.Errorf("search tag %q: %w", name, err)
		}

		var id int64
		for _, t := range found {
			if t.Name == name {
				id = t.ID
				break
			}
		}

		if id == 0 {
			var created wpTag
			if err := a.client.Do(ctx, http.MethodPost, "/wp-json/wp/v2/tags", wpTagRequest{Name: name}, &created); err != nil {
				return nil, fmt.Errorf("create tag %q: %w", name, err)
			}
			id = created.ID
		}

		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Adapter) requireAuth() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.authenticated {
		return domain.NewPublishError(domain.CodeAuth, PlatformName, "adapter is not authenticated")
	}
	return nil
}
