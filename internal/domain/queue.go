package domain

import (
	"encoding/json"
	"time"
)

// ProcessingOrder selects how a queue lane dequeues ready items.
type ProcessingOrder string

const (
	OrderFIFO     ProcessingOrder = "fifo"
	OrderPriority ProcessingOrder = "priority"
)

// RetryPolicy governs re-enqueueing of failed queue items.
type RetryPolicy struct {
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay" json:"retry_delay"`
	ExponentialBackoff bool          `yaml:"exponential_backoff" json:"exponential_backoff"`
	// SkipOnErrors lists error codes that fail an item permanently without
	// consuming retries.
	SkipOnErrors []ErrorCode `yaml:"skip_on_errors" json:"skip_on_errors,omitempty"`
}

// Skips reports whether code bypasses the retry policy entirely.
func (p RetryPolicy) Skips(code ErrorCode) bool {
	for _, c := range p.SkipOnErrors {
		if c == code {
			return true
		}
	}
	return false
}

// Delay returns the wait before the n-th retry (attempts = completed
// attempts so far, at least 1).
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if !p.ExponentialBackoff {
		return p.RetryDelay
	}
	d := p.RetryDelay
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

// QueueConfig defines one named processing lane.
type QueueConfig struct {
	Name          string          `yaml:"name" json:"name"`
	Order         ProcessingOrder `yaml:"order" json:"order"`
	MaxConcurrent int             `yaml:"max_concurrent" json:"max_concurrent"`
	Retry         RetryPolicy     `yaml:"retry" json:"retry"`
}

// QueueItemType identifies the unit of work an item carries.
type QueueItemType string

const (
	ItemPublish           QueueItemType = "publish"
	ItemScheduleCreate    QueueItemType = "schedule_create"
	ItemAnalyticsSync     QueueItemType = "analytics_sync"
	ItemContentAdaptation QueueItemType = "content_adaptation"
)

// QueueItemStatus is the lifecycle state of one queue item.
type QueueItemStatus string

const (
	ItemStatusPending    QueueItemStatus = "pending"
	ItemStatusProcessing QueueItemStatus = "processing"
	ItemStatusRetrying   QueueItemStatus = "retrying"
	ItemStatusCompleted  QueueItemStatus = "completed"
	ItemStatusFailed     QueueItemStatus = "failed"
)

// QueueItem wraps one unit of work with its own status and attempt count.
type QueueItem struct {
	ID         string          `json:"id"`
	Type       QueueItemType   `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Priority   int             `json:"priority"`
	Status     QueueItemStatus `json:"status"`
	Attempts   int             `json:"attempts"`
	LastError  *PublishError   `json:"-"`
	NotBefore  time.Time       `json:"not_before,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// QueueStats is a read-only snapshot of one lane.
type QueueStats struct {
	Name           string                  `json:"name"`
	CountsByStatus map[QueueItemStatus]int `json:"counts_by_status"`
	Processing     int                     `json:"processing"`
	Completed      int                     `json:"completed"`
	// PermanentlyFailed counts items that exhausted their retries or hit a
	// skip-listed error; distinct from items still retrying.
	PermanentlyFailed int     `json:"permanently_failed"`
	SuccessRate       float64 `json:"success_rate"`
}
