// Package scheduler turns publish intents into durable, time-triggered and
// recurrence-aware work executed through the queue subsystem.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crosspost/internal/domain"
	"crosspost/internal/events"
)

// Config holds scheduler settings.
type Config struct {
	// PollInterval is the driver's scan period for due schedules.
	PollInterval time.Duration
	// Grace allows a schedule a small window in the past to count as
	// immediately due rather than invalid.
	Grace time.Duration
	// BatchSize caps how many due schedules one scan claims.
	BatchSize int
	// QueueName is the lane expanded publish items go to.
	QueueName string
}

// CreateScheduleRequest carries everything needed to persist a schedule.
type CreateScheduleRequest struct {
	Content       domain.Content
	Platforms     []string
	ScheduledTime time.Time
	Recurring     *domain.RecurringPattern
	Priority      int
	Options       domain.MultiPublishOptions
}

// PublishJob is the payload of one expanded publish queue item. Each due
// schedule expands into one job per target platform so retries stay isolated
// per platform.
type PublishJob struct {
	ScheduleID string                     `json:"schedule_id"`
	Occurrence int                        `json:"occurrence"`
	Content    domain.Content             `json:"content"`
	Platforms  []string                   `json:"platforms"`
	Options    domain.MultiPublishOptions `json:"options"`
}

// Service manages schedule lifecycle and the expansion of due schedules.
type Service struct {
	store   ScheduleStore
	records PublishRecordStore
	tx      TransactionManager
	queue   Enqueuer
	emitter events.Emitter
	logger  *slog.Logger
	cfg     Config

	now func() time.Time
}

// NewService wires the schedule service.
func NewService(
	store ScheduleStore,
	records PublishRecordStore,
	tx TransactionManager,
	queue Enqueuer,
	emitter events.Emitter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "publish"
	}
	if emitter == nil {
		emitter = events.Noop{}
	}

	return &Service{
		store:   store,
		records: records,
		tx:      tx,
		queue:   queue,
		emitter: emitter,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// CreateSchedule validates and persists a new schedule in pending state.
func (s *Service) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*domain.Schedule, error) {
	if len(req.Platforms) == 0 {
		return nil, fmt.Errorf("at least one target platform is required")
	}

	now := s.now()
	if req.ScheduledTime.Before(now.Add(-s.cfg.Grace)) {
		return nil, fmt.Errorf("scheduled time %s is in the past", req.ScheduledTime.Format(time.RFC3339))
	}
	if err := validateRecurrence(req.Recurring); err != nil {
		return nil, fmt.Errorf("invalid recurrence: %w", err)
	}

	sched := &domain.Schedule{
		ID:            uuid.NewString(),
		Content:       req.Content,
		Platforms:     req.Platforms,
		ScheduledTime: req.ScheduledTime,
		Recurring:     req.Recurring,
		Priority:      req.Priority,
		Status:        domain.ScheduleStatusPending,
		Options:       req.Options,
		NextRunAt:     req.ScheduledTime,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.logger.Info("schedule created",
		"schedule_id", sched.ID,
		"platforms", sched.Platforms,
		"scheduled_time", sched.ScheduledTime,
		"recurring", sched.IsRecurring(),
	)
	return sched, nil
}

// GetSchedule returns one schedule by id.
func (s *Service) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.store.Get(ctx, id)
}

// ListSchedules returns schedules matching the filter.
func (s *Service) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	return s.store.List(ctx, filter)
}

// CancelSchedule prevents all future expansion. Items already dispatched to
// the queue are unaffected.
func (s *Service) CancelSchedule(ctx context.Context, id string) error {
	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}
	if sched.Status == domain.ScheduleStatusCompleted || sched.Status == domain.ScheduleStatusCancelled {
		return fmt.Errorf("schedule %s is already %s", id, sched.Status)
	}

	sched.Status = domain.ScheduleStatusCancelled
	sched.UpdatedAt = s.now()
	if err := s.store.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Info("schedule cancelled", "schedule_id", id)
	return nil
}

// ExpandDue claims due schedules and expands each into queue items, then
// advances recurrence state. Every due schedule yields at least one item.
func (s *Service) ExpandDue(ctx context.Context) (int, error) {
	now := s.now()
	expanded := 0

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		due, err := s.store.ListDue(txCtx, now, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list due schedules: %w", err)
		}

		for i := range due {
			sched := &due[i]
			if err := s.expandSchedule(txCtx, sched, now); err != nil {
				return fmt.Errorf("expand schedule %s: %w", sched.ID, err)
			}
			expanded++
		}
		return nil
	})
	if err != nil {
		return expanded, err
	}

	if expanded > 0 {
		s.logger.Info("expanded due schedules", "count", expanded)
	}
	return expanded, nil
}

func (s *Service) expandSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	for _, platformName := range sched.Platforms {
		job := PublishJob{
			ScheduleID: sched.ID,
			Occurrence: sched.Occurrences,
			Content:    sched.Content,
			Platforms:  []string{platformName},
			Options:    sched.Options,
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		item := &domain.QueueItem{
			Type:     domain.ItemPublish,
			Payload:  payload,
			Priority: sched.Priority,
		}
		itemID, err := s.queue.Enqueue(s.cfg.QueueName, item)
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}

		s.emit(ctx, events.Event{
			Type:        events.TypeScheduleExpanded,
			ScheduleID:  sched.ID,
			ContentID:   sched.Content.ID,
			Platform:    platformName,
			QueueName:   s.cfg.QueueName,
			QueueItemID: itemID,
		})
	}

	sched.Occurrences++
	sched.LastRunAt = &now
	sched.UpdatedAt = now

	if sched.IsRecurring() {
		next, ok := NextRun(sched.ScheduledTime, *sched.Recurring, sched.Occurrences)
		if ok {
			sched.Status = domain.ScheduleStatusPending
			sched.NextRunAt = next
		} else {
			sched.Status = domain.ScheduleStatusCompleted
		}
	} else {
		// One-shot schedules stay active until their queue items report the
		// final outcome.
		sched.Status = domain.ScheduleStatusActive
	}

	return s.store.Update(ctx, sched)
}

// Stats derives read-only schedule statistics. It never mutates state.
func (s *Service) Stats(ctx context.Context) (*domain.ScheduleStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count schedules: %w", err)
	}
	next, err := s.store.NextExecution(ctx)
	if err != nil {
		return nil, fmt.Errorf("next execution: %w", err)
	}

	stats := &domain.ScheduleStats{
		CountsByStatus: counts,
		NextExecution:  next,
	}
	completed := counts[domain.ScheduleStatusCompleted]
	failed := counts[domain.ScheduleStatusFailed]
	if total := completed + failed; total > 0 {
		stats.SuccessRate = float64(completed) / float64(total)
	}
	return stats, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Debug("event emission failed", "type", event.Type, "error", err)
	}
}
