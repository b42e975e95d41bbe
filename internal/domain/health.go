package domain

import "time"

// HealthStatus grades a platform's availability.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// PlatformHealth is the result of one adapter health check.
type PlatformHealth struct {
	Platform     string        `json:"platform"`
	Status       HealthStatus  `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Errors       []string      `json:"errors,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// IssueSeverity orders health issues in a rollup, most severe first.
type IssueSeverity int

const (
	SeverityWarning IssueSeverity = iota
	SeverityError
)

// HealthIssue is one flattened problem surfaced by a health rollup.
type HealthIssue struct {
	Platform string        `json:"platform"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// HealthReport rolls up health across all registered platforms.
type HealthReport struct {
	Overall   HealthStatus              `json:"overall"`
	Platforms map[string]PlatformHealth `json:"platforms"`
	Issues    []HealthIssue             `json:"issues,omitempty"`
	CheckedAt time.Time                 `json:"checked_at"`
}
