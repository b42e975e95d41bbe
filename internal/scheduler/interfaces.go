package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"crosspost/internal/domain"
)

// ScheduleFilter narrows a schedule listing.
type ScheduleFilter struct {
	Status   domain.ScheduleStatus
	Platform string
	Limit    int
}

type ScheduleStore interface {
	Create(ctx context.Context, sched *domain.Schedule) (err error)
	Get(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error)
	Update(ctx context.Context, sched *domain.Schedule) error
	// ListDue returns pending schedules whose next run is at or before now,
	// claimed for the caller's transaction.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	CountByStatus(ctx context.Context) (map[domain.ScheduleStatus]int, error)
	// NextExecution returns the earliest pending next-run time, or nil.
	NextExecution(ctx context.Context) (*time.Time, error)
}

type PublishRecordStore interface {
	Append(ctx context.Context, rec *domain.PublishRecord) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]domain.PublishRecord, error)
}

// Enqueuer hands expanded work to the queue subsystem.
type Enqueuer interface {
	Enqueue(queueName string, item *domain.QueueItem) (string, error)
}

// Publisher is the fan-out the publish handler drives.
type Publisher interface {
	PublishToSelected(ctx context.Context, content *domain.Content, names []string, opts domain.MultiPublishOptions) (*domain.PublishReport, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
