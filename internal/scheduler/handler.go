package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"crosspost/internal/domain"
)

// PublishHandler processes expanded publish queue items: it drives the
// fan-out, records per-platform outcomes and settles one-shot schedule
// status.
type PublishHandler struct {
	publisher Publisher
	store     ScheduleStore
	records   PublishRecordStore
	logger    *slog.Logger
}

// NewPublishHandler wires the handler.
func NewPublishHandler(publisher Publisher, store ScheduleStore, records PublishRecordStore, logger *slog.Logger) *PublishHandler {
	return &PublishHandler{
		publisher: publisher,
		store:     store,
		records:   records,
		logger:    logger,
	}
}

// Handle runs one publish job. A failed platform result is returned as its
// coded error so the queue's retry policy decides what happens next.
func (h *PublishHandler) Handle(ctx context.Context, item *domain.QueueItem) error {
	var job PublishJob
	if err := json.Unmarshal(item.Payload, &job); err != nil {
		return domain.NewPublishError(domain.CodeValidation, "",
			fmt.Sprintf("decode publish job: %v", err))
	}

	report, err := h.publisher.PublishToSelected(ctx, &job.Content, job.Platforms, job.Options)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	for _, res := range report.Results {
		h.appendRecord(ctx, job.ScheduleID, job.Content.ID, res)
	}

	if !report.Success {
		for _, res := range report.Results {
			if !res.Success && res.Error != nil {
				return res.Error
			}
		}
		return domain.NewPublishError(domain.CodeInternal, "", "publish failed with no result error")
	}

	h.settleSuccess(ctx, job.ScheduleID)
	return nil
}

// HandleFailure marks the schedule behind a permanently failed item. A
// recurring schedule keeps running its later occurrences; a one-shot
// schedule is failed.
func (h *PublishHandler) HandleFailure(ctx context.Context, item *domain.QueueItem) error {
	var job PublishJob
	if err := json.Unmarshal(item.Payload, &job); err != nil {
		return fmt.Errorf("decode publish job: %w", err)
	}
	if job.ScheduleID == "" {
		return nil
	}

	sched, err := h.store.Get(ctx, job.ScheduleID)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	msg := "publish failed after retries"
	if item.LastError != nil {
		msg = item.LastError.Error()
	}
	sched.LastError = &msg
	if !sched.IsRecurring() && sched.Status == domain.ScheduleStatusActive {
		sched.Status = domain.ScheduleStatusFailed
	}
	sched.UpdatedAt = time.Now().UTC()

	return h.store.Update(ctx, sched)
}

// settleSuccess completes a one-shot schedule once every target platform has
// a successful record.
func (h *PublishHandler) settleSuccess(ctx context.Context, scheduleID string) {
	if scheduleID == "" {
		return
	}

	sched, err := h.store.Get(ctx, scheduleID)
	if err != nil {
		h.logger.Warn("settle: get schedule failed", "schedule_id", scheduleID, "error", err)
		return
	}
	if sched.IsRecurring() || sched.Status != domain.ScheduleStatusActive {
		return
	}

	recs, err := h.records.ListBySchedule(ctx, scheduleID)
	if err != nil {
		h.logger.Warn("settle: list records failed", "schedule_id", scheduleID, "error", err)
		return
	}

	succeeded := make(map[string]bool)
	for _, rec := range recs {
		if rec.Success {
			succeeded[rec.Platform] = true
		}
	}
	for _, p := range sched.Platforms {
		if !succeeded[p] {
			return
		}
	}

	sched.Status = domain.ScheduleStatusCompleted
	sched.UpdatedAt = time.Now().UTC()
	if err := h.store.Update(ctx, sched); err != nil {
		h.logger.Warn("settle: update schedule failed", "schedule_id", scheduleID, "error", err)
	}
}

func (h *PublishHandler) appendRecord(ctx context.Context, scheduleID, contentID string, res domain.PublishResult) {
	rec := &domain.PublishRecord{
		ContentID: contentID,
		Platform:  res.Platform,
		Success:   res.Success,
		Duration:  res.Duration,
	}
	if scheduleID != "" {
		rec.ScheduleID = &scheduleID
	}
	if res.ExternalID != "" {
		rec.ExternalID = &res.ExternalID
	}
	if res.URL != "" {
		rec.URL = &res.URL
	}
	if res.Error != nil {
		code := string(res.Error.Code)
		rec.ErrorCode = &code
		rec.ErrorMessage = &res.ErrorText
	}

	if err := h.records.Append(ctx, rec); err != nil {
		h.logger.Warn("append publish record failed",
			"schedule_id", scheduleID,
			"platform", res.Platform,
			"error", err,
		)
	}
}
