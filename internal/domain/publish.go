package domain

import "time"

// PublishResult is the outcome of one adapter call. Immutable once produced;
// a dispatched call always yields exactly one of these.
type PublishResult struct {
	Platform    string         `json:"platform"`
	Success     bool           `json:"success"`
	ExternalID  string         `json:"external_id,omitempty"`
	URL         string         `json:"url,omitempty"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Error       *PublishError  `json:"-"`
	ErrorText   string         `json:"error,omitempty"`
}

// FailedResult builds the canonical failed PublishResult for an error.
func FailedResult(platform string, err *PublishError) PublishResult {
	return PublishResult{
		Platform:  platform,
		Success:   false,
		Error:     err,
		ErrorText: err.Error(),
	}
}

// PublishOptions configures a single adapter call.
type PublishOptions struct {
	Status     string   `yaml:"status" json:"status,omitempty"` // draft or publish
	Tags       []string `yaml:"tags" json:"tags,omitempty"`
	Categories []string `yaml:"categories" json:"categories,omitempty"`
}

// MultiPublishOptions configures one fan-out across platforms.
type MultiPublishOptions struct {
	// PublishOrder fixes the start order for the named platforms; platforms
	// not listed start after, in registration order. Completion order is
	// never serialized.
	PublishOrder       []string                   `yaml:"publish_order" json:"publish_order,omitempty"`
	StopOnFirstFailure bool                       `yaml:"stop_on_first_failure" json:"stop_on_first_failure,omitempty"`
	RequireAllSuccess  bool                       `yaml:"require_all_success" json:"require_all_success,omitempty"`
	MaxConcurrent      int                        `yaml:"max_concurrent" json:"max_concurrent,omitempty"`
	PlatformOptions    map[string]PublishOptions  `yaml:"platform_options" json:"platform_options,omitempty"`
	AdaptationRules    map[string]AdaptationRules `yaml:"adaptation_rules" json:"adaptation_rules,omitempty"`
}

// PublishReport aggregates one fan-out. Every requested platform appears
// exactly once in Results, success or failure.
type PublishReport struct {
	Success       bool                     `json:"success"`
	Results       map[string]PublishResult `json:"results"`
	Errors        map[string]string        `json:"errors,omitempty"`
	SuccessCount  int                      `json:"success_count"`
	FailureCount  int                      `json:"failure_count"`
	TotalDuration time.Duration            `json:"total_duration"`
}

// PublishRecord is the persisted audit row for one platform outcome.
type PublishRecord struct {
	ID           int64         `db:"id"`
	ScheduleID   *string       `db:"schedule_id"`
	ContentID    string        `db:"content_id"`
	Platform     string        `db:"platform"`
	Success      bool          `db:"success"`
	ExternalID   *string       `db:"external_id"`
	URL          *string       `db:"url"`
	ErrorCode    *string       `db:"error_code"`
	ErrorMessage *string       `db:"error_message"`
	Duration     time.Duration `db:"duration_ns"`
	CreatedAt    time.Time     `db:"created_at"`
}

// AuthResult reports the outcome of adapter authentication.
type AuthResult struct {
	Success   bool       `json:"success"`
	Identity  string     `json:"identity,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RateLimit is the last-known quota state for a platform.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}
