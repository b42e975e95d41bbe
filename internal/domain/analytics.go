package domain

import "time"

// TimeRange bounds an analytics query.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PlatformAnalytics holds core per-platform metrics. Estimated marks
// best-effort numbers from platforms without an analytics API.
type PlatformAnalytics struct {
	Platform    string    `json:"platform"`
	Views       int64     `json:"views"`
	Engagements int64     `json:"engagements"`
	Shares      int64     `json:"shares"`
	Comments    int64     `json:"comments"`
	Estimated   bool      `json:"estimated"`
	Range       TimeRange `json:"range"`
}

// ContentAnalytics holds metrics for one published entity.
type ContentAnalytics struct {
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id"`
	Views       int64     `json:"views"`
	Engagements int64     `json:"engagements"`
	Estimated   bool      `json:"estimated"`
	Range       TimeRange `json:"range"`
}

// AggregatedAnalytics sums core metrics across platforms. Gaps names
// platforms whose analytics call failed and were substituted with zeros.
type AggregatedAnalytics struct {
	TotalViews       int64                        `json:"total_views"`
	TotalEngagements int64                        `json:"total_engagements"`
	TotalShares      int64                        `json:"total_shares"`
	TotalComments    int64                        `json:"total_comments"`
	PerPlatform      map[string]PlatformAnalytics `json:"per_platform"`
	Gaps             []string                     `json:"gaps,omitempty"`
	Range            TimeRange                    `json:"range"`
}

// ComparativeAnalytics ranks platforms per metric by simple max comparison.
type ComparativeAnalytics struct {
	Winners     map[string]string            `json:"winners"` // metric name -> platform
	PerPlatform map[string]PlatformAnalytics `json:"per_platform"`
	Gaps        []string                     `json:"gaps,omitempty"`
	Range       TimeRange                    `json:"range"`
}
