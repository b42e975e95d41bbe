package platform

import (
	"context"
	"time"

	"crosspost/internal/domain"
)

// CredentialType discriminates the credential payload union.
type CredentialType string

const (
	CredentialPrivateApp          CredentialType = "private_app"
	CredentialOAuth2              CredentialType = "oauth2"
	CredentialAPIToken            CredentialType = "api_token"
	CredentialAPIKey              CredentialType = "api_key"
	CredentialApplicationPassword CredentialType = "application_password"
	CredentialIntegrationToken    CredentialType = "integration_token"
)

// Credentials carries per-platform authentication material. Which fields are
// meaningful depends on Type; adapters validate what they need.
type Credentials struct {
	Type         CredentialType `yaml:"type"`
	SiteURL      string         `yaml:"site_url"`
	StoreURL     string         `yaml:"store_url"`
	Username     string         `yaml:"username"`
	AppPassword  string         `yaml:"app_password"`
	AccessToken  string         `yaml:"access_token"`
	APIKey       string         `yaml:"api_key"`
	CollectionID string         `yaml:"collection_id"`
}

// Adapter normalizes one external publishing platform behind a
// capability-aware contract. Implementations hold no mutable shared state
// across concurrent calls beyond the stored session token; every call is
// self-contained.
type Adapter interface {
	// Name returns the unique registry key for the platform.
	Name() string

	// Capabilities returns the platform's declared limits. Immutable.
	Capabilities() domain.PlatformCapabilities

	// Authenticate validates credentials and stores the session. Idempotent:
	// re-authenticating with the same credentials is safe.
	Authenticate(ctx context.Context, creds Credentials) (*domain.AuthResult, error)

	// Publish creates the remote entity with one network round trip (plus
	// auxiliary calls such as asset upload). The caller owns retries.
	Publish(ctx context.Context, formatted *domain.FormattedContent, opts domain.PublishOptions) (*domain.PublishResult, error)

	// Update mutates a previously published entity. Fails with a not_found
	// error when the external id no longer exists remotely.
	Update(ctx context.Context, externalID string, formatted *domain.FormattedContent, opts domain.PublishOptions) (*domain.PublishResult, error)

	// Delete removes a previously published entity.
	Delete(ctx context.Context, externalID string) (*domain.PublishResult, error)

	// Schedule delegates to the platform's native scheduling. Platforms
	// without native support return a structured unsupported_operation
	// result so the caller falls back to the generic scheduler.
	Schedule(ctx context.Context, formatted *domain.FormattedContent, at time.Time, opts domain.PublishOptions) (*domain.PublishResult, error)

	// Analytics returns platform metrics for the range, degrading to a
	// best-effort estimated result when the platform has no analytics API.
	Analytics(ctx context.Context, tr domain.TimeRange) (*domain.PlatformAnalytics, error)

	// ContentAnalytics returns metrics for one published entity, with the
	// same degradation rule as Analytics.
	ContentAnalytics(ctx context.Context, externalID string, tr domain.TimeRange) (*domain.ContentAnalytics, error)

	// HealthCheck performs one lightweight round trip. It never returns an
	// error; network failure maps to an unhealthy status.
	HealthCheck(ctx context.Context) domain.PlatformHealth

	// RateLimit reports the last-known quota state.
	RateLimit() domain.RateLimit
}
