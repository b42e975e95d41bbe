package domain

import "time"

// ScheduleStatus is the lifecycle state of a Schedule.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusFailed    ScheduleStatus = "failed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// RecurrenceType selects how a recurring schedule computes its next run.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceCron    RecurrenceType = "cron"
)

// RecurringPattern describes how a schedule regenerates future occurrences.
type RecurringPattern struct {
	Type           RecurrenceType `json:"type"`
	Interval       int            `json:"interval"`
	MaxOccurrences int            `json:"max_occurrences,omitempty"`
	// DaysOfWeek is only meaningful for weekly recurrence.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	// CronExpr is only meaningful for cron recurrence, standard 5-field form.
	CronExpr string `json:"cron_expr,omitempty"`
}

// Schedule is a persisted publish intent: content, targets, a trigger time and
// an optional recurrence rule.
type Schedule struct {
	ID            string              `json:"id"`
	Content       Content             `json:"content"`
	Platforms     []string            `json:"platforms"`
	ScheduledTime time.Time           `json:"scheduled_time"`
	Recurring     *RecurringPattern   `json:"recurring,omitempty"`
	Priority      int                 `json:"priority"`
	Status        ScheduleStatus      `json:"status"`
	Options       MultiPublishOptions `json:"options"`
	Occurrences   int                 `json:"occurrences"`
	NextRunAt     time.Time           `json:"next_run_at"`
	LastRunAt     *time.Time          `json:"last_run_at,omitempty"`
	LastError     *string             `json:"last_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// IsRecurring reports whether the schedule carries a recurrence rule.
func (s *Schedule) IsRecurring() bool {
	return s.Recurring != nil
}

// ScheduleStats is a read-only snapshot derived from stored schedules.
type ScheduleStats struct {
	CountsByStatus map[ScheduleStatus]int `json:"counts_by_status"`
	NextExecution  *time.Time             `json:"next_execution,omitempty"`
	SuccessRate    float64                `json:"success_rate"`
}
