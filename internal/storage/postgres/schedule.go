package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"crosspost/internal/domain"
	"crosspost/internal/scheduler"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type ScheduleStore struct {
	db *sqlx.DB
}

func NewScheduleStore(db *sqlx.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

type scheduleRow struct {
	ID            string         `db:"id"`
	Content       []byte         `db:"content"`
	Platforms     pq.StringArray `db:"platforms"`
	ScheduledTime time.Time      `db:"scheduled_time"`
	Recurring     []byte         `db:"recurring"`
	Priority      int            `db:"priority"`
	Status        string         `db:"status"`
	Options       []byte         `db:"options"`
	Occurrences   int            `db:"occurrences"`
	NextRunAt     time.Time      `db:"next_run_at"`
	LastRunAt     *time.Time     `db:"last_run_at"`
	LastError     *string        `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

const scheduleColumns = `id, content, platforms, scheduled_time, recurring, priority,
	status, options, occurrences, next_run_at, last_run_at, last_error,
	created_at, updated_at`

func (s *ScheduleStore) Create(ctx context.Context, sched *domain.Schedule) error {
	row, err := toScheduleRow(sched)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (:id, :content, :platforms, :scheduled_time, :recurring, :priority,
			:status, :options, :occurrences, :next_run_at, :last_run_at, :last_error,
			:created_at, :updated_at)`

	exec := GetExecutor(ctx, s.db)
	if _, err := sqlx.NamedExecContext(ctx, exec, query, row); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	var row scheduleRow
	exec := GetExecutor(ctx, s.db)
	if err := sqlx.GetContext(ctx, exec, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewPublishError(domain.CodeNotFound, "",
				fmt.Sprintf("schedule %s not found", id))
		}
		return nil, fmt.Errorf("select schedule: %w", err)
	}
	return fromScheduleRow(&row)
}

func (s *ScheduleStore) List(ctx context.Context, filter scheduler.ScheduleFilter) ([]domain.Schedule, error) {
	builder := psql.Select(scheduleColumns).
		From("schedules").
		OrderBy("next_run_at ASC")

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Platform != "" {
		builder = builder.Where("? = ANY(platforms)", filter.Platform)
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []scheduleRow
	exec := GetExecutor(ctx, s.db)
	if err := sqlx.SelectContext(ctx, exec, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	return fromScheduleRows(rows)
}

func (s *ScheduleStore) Update(ctx context.Context, sched *domain.Schedule) error {
	row, err := toScheduleRow(sched)
	if err != nil {
		return err
	}

	query := `
		UPDATE schedules SET
			content = :content,
			platforms = :platforms,
			scheduled_time = :scheduled_time,
			recurring = :recurring,
			priority = :priority,
			status = :status,
			options = :options,
			occurrences = :occurrences,
			next_run_at = :next_run_at,
			last_run_at = :last_run_at,
			last_error = :last_error,
			updated_at = :updated_at
		WHERE id = :id`

	exec := GetExecutor(ctx, s.db)
	res, err := sqlx.NamedExecContext(ctx, exec, query, row)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewPublishError(domain.CodeNotFound, "",
			fmt.Sprintf("schedule %s not found", sched.ID))
	}
	return nil
}

// ListDue claims pending schedules that are due, locking the rows so
// concurrent scanners never expand the same schedule twice.
func (s *ScheduleStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE status = $1 AND next_run_at <= $2
		ORDER BY priority DESC, next_run_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	var rows []scheduleRow
	exec := GetExecutor(ctx, s.db)
	if err := sqlx.SelectContext(ctx, exec, &rows, query,
		string(domain.ScheduleStatusPending), now, limit,
	); err != nil {
		return nil, fmt.Errorf("select due schedules: %w", err)
	}
	return fromScheduleRows(rows)
}

func (s *ScheduleStore) CountByStatus(ctx context.Context) (map[domain.ScheduleStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM schedules GROUP BY status`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count schedules: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ScheduleStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.ScheduleStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *ScheduleStore) NextExecution(ctx context.Context) (*time.Time, error) {
	query := `SELECT MIN(next_run_at) FROM schedules WHERE status = $1`

	var next sql.NullTime
	exec := GetExecutor(ctx, s.db)
	if err := sqlx.GetContext(ctx, exec, &next, query, string(domain.ScheduleStatusPending)); err != nil {
		return nil, fmt.Errorf("select next execution: %w", err)
	}
	if !next.Valid {
		return nil, nil
	}
	return &next.Time, nil
}

func toScheduleRow(sched *domain.Schedule) (*scheduleRow, error) {
	content, err := json.Marshal(sched.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	options, err := json.Marshal(sched.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	var recurring []byte
	if sched.Recurring != nil {
		recurring, err = json.Marshal(sched.Recurring)
		if err != nil {
			return nil, fmt.Errorf("marshal recurrence: %w", err)
		}
	}

	return &scheduleRow{
		ID:            sched.ID,
		Content:       content,
		Platforms:     pq.StringArray(sched.Platforms),
		ScheduledTime: sched.ScheduledTime,
		Recurring:     recurring,
		Priority:      sched.Priority,
		Status:        string(sched.Status),
		Options:       options,
		Occurrences:   sched.Occurrences,
		NextRunAt:     sched.NextRunAt,
		LastRunAt:     sched.LastRunAt,
		LastError:     sched.LastError,
		CreatedAt:     sched.CreatedAt,
		UpdatedAt:     sched.UpdatedAt,
	}, nil
}

func fromScheduleRow(row *scheduleRow) (*domain.Schedule, error) {
	sched := &domain.Schedule{
		ID:            row.ID,
		Platforms:     []string(row.Platforms),
		ScheduledTime: row.ScheduledTime,
		Priority:      row.Priority,
		Status:        domain.ScheduleStatus(row.Status),
		Occurrences:   row.Occurrences,
		NextRunAt:     row.NextRunAt,
		LastRunAt:     row.LastRunAt,
		LastError:     row.LastError,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}

	if err := json.Unmarshal(row.Content, &sched.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &sched.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(row.Recurring) > 0 {
		var pattern domain.RecurringPattern
		if err := json.Unmarshal(row.Recurring, &pattern); err != nil {
			return nil, fmt.Errorf("unmarshal recurrence: %w", err)
		}
		sched.Recurring = &pattern
	}
	return sched, nil
}

func fromScheduleRows(rows []scheduleRow) ([]domain.Schedule, error) {
	schedules := make([]domain.Schedule, 0, len(rows))
	for i := range rows {
		sched, err := fromScheduleRow(&rows[i])
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sched)
	}
	return schedules, nil
}
