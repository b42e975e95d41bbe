package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"crosspost/internal/domain"
)

type PublishRecordStore struct {
	db *sqlx.DB
}

func NewPublishRecordStore(db *sqlx.DB) *PublishRecordStore {
	return &PublishRecordStore{db: db}
}

func (s *PublishRecordStore) Append(ctx context.Context, rec *domain.PublishRecord) error {
	query := `
		INSERT INTO publish_records (
			schedule_id, content_id, platform, success, external_id, url,
			error_code, error_message, duration_ns
		) VALUES (
			:schedule_id, :content_id, :platform, :success, :external_id, :url,
			:error_code, :error_message, :duration_ns
		)`

	exec := GetExecutor(ctx, s.db)
	if _, err := sqlx.NamedExecContext(ctx, exec, query, rec); err != nil {
		return fmt.Errorf("insert publish record: %w", err)
	}
	return nil
}

func (s *PublishRecordStore) ListBySchedule(ctx context.Context, scheduleID string) ([]domain.PublishRecord, error) {
	query := `
		SELECT id, schedule_id, content_id, platform, success, external_id, url,
			error_code, error_message, duration_ns, created_at
		FROM publish_records
		WHERE schedule_id = $1
		ORDER BY created_at ASC, id ASC`

	var recs []domain.PublishRecord
	exec := GetExecutor(ctx, s.db)
	if err := sqlx.SelectContext(ctx, exec, &recs, query, scheduleID); err != nil {
		return nil, fmt.Errorf("select publish records: %w", err)
	}
	return recs, nil
}
