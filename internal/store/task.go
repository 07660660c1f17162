package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

const taskCols = `id, title, glance_note, detail_note, estimated_duration, area_id, source_type, completed_at, archived_at, deleted_at, recurrence_id, recurrence_original_date, recurrence_exclusions, created_at, updated_at`

func scanTask(row scanner) (*model.Task, error) {
	var t model.Task
	var glance, detail, areaID, recID, recDate, recExcl sql.NullString
	var estimated sql.NullInt64
	var completed, archived, deleted sql.NullTime
	var source string

	err := row.Scan(
		&t.ID, &t.Title, &glance, &detail, &estimated, &areaID, &source,
		&completed, &archived, &deleted, &recID, &recDate, &recExcl,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.GlanceNote = stringPtr(glance)
	t.DetailNote = stringPtr(detail)
	t.EstimatedDuration = intPtr(estimated)
	t.AreaID = stringPtr(areaID)
	t.SourceType = model.SourceType(source)
	t.CompletedAt = timePtr(completed)
	t.ArchivedAt = timePtr(archived)
	t.DeletedAt = timePtr(deleted)
	t.RecurrenceID = stringPtr(recID)
	t.RecurrenceOriginalDate = stringPtr(recDate)
	t.RecurrenceExclusions = stringPtr(recExcl)
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, t model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullString(t.GlanceNote), nullString(t.DetailNote), nullInt(t.EstimatedDuration),
		nullString(t.AreaID), string(t.SourceType), nullTime(t.CompletedAt), nullTime(t.ArchivedAt),
		nullTime(t.DeletedAt), nullString(t.RecurrenceID), nullString(t.RecurrenceOriginalDate),
		nullString(t.RecurrenceExclusions), utc(t.CreatedAt), utc(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID returns the task, including soft-deleted ones, or nil.
func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Complete(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		utc(now), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return expectOne(res, "complete task")
}

func (s *TaskStore) Archive(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET archived_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		utc(now), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return expectOne(res, "archive task")
}

func (s *TaskStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		utc(now), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	return nil
}

// SetRecurrence marks the task as the instance of a rule for one date.
func (s *TaskStore) SetRecurrence(ctx context.Context, id, recurrenceID, date string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recurrence_id = ?, recurrence_original_date = ?, updated_at = ? WHERE id = ?`,
		recurrenceID, date, utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("set task recurrence: %w", err)
	}
	return expectOne(res, "set task recurrence")
}

// SetExclusions replaces the task's recurrence_exclusions list.
func (s *TaskStore) SetExclusions(ctx context.Context, id string, exclusions *string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recurrence_exclusions = ?, updated_at = ? WHERE id = ?`,
		nullString(exclusions), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("set task exclusions: %w", err)
	}
	return expectOne(res, "set task exclusions")
}

func (s *TaskStore) ClearRecurrence(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recurrence_id = NULL, recurrence_original_date = NULL, updated_at = ? WHERE id = ?`,
		utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("clear task recurrence: %w", err)
	}
	return nil
}

// ClearRecurrenceByRule detaches every task ever produced by the rule,
// completed or not.
func (s *TaskStore) ClearRecurrenceByRule(ctx context.Context, recurrenceID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recurrence_id = NULL, recurrence_original_date = NULL, updated_at = ? WHERE recurrence_id = ?`,
		utc(now), recurrenceID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear tasks recurrence: %w", err)
	}
	return res.RowsAffected()
}

// ListLiveIDsByRecurrence returns linked tasks that are neither completed
// nor deleted. When afterDate is non-empty only occurrences strictly after
// it are returned.
func (s *TaskStore) ListLiveIDsByRecurrence(ctx context.Context, recurrenceID, afterDate string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id
		 FROM recurrence_links l
		 JOIN tasks t ON t.id = l.instance_id
		 WHERE l.recurrence_id = ?
		   AND t.completed_at IS NULL
		   AND t.deleted_at IS NULL
		   AND (? = '' OR l.occurrence_date > ?)
		 ORDER BY l.occurrence_date ASC`,
		recurrenceID, afterDate, afterDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list live tasks: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan live tasks: %w", err)
	}
	return ids, nil
}

func (s *TaskStore) ListByRecurrence(ctx context.Context, recurrenceID string) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE recurrence_id = ? ORDER BY recurrence_original_date ASC`,
		recurrenceID,
	)
}

// --- Schedule methods ---

func (s *TaskStore) AddSchedule(ctx context.Context, taskID, date string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_schedules (task_id, scheduled_date, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (task_id, scheduled_date) DO NOTHING`,
		taskID, date, utc(now),
	)
	if err != nil {
		return fmt.Errorf("insert task schedule: %w", err)
	}
	return nil
}

func (s *TaskStore) DeleteSchedules(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_schedules WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete task schedules: %w", err)
	}
	return nil
}

func (s *TaskStore) ListScheduleDates(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scheduled_date FROM task_schedules WHERE task_id = ? ORDER BY scheduled_date ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task schedules: %w", err)
	}
	dates, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan task schedules: %w", err)
	}
	return dates, nil
}

// ListForDate returns live tasks scheduled on date. Recurring instances from
// a rule with EXPIRE behavior whose occurrence date is before today are left
// out; nothing is written.
func (s *TaskStore) ListForDate(ctx context.Context, date, today string) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+prefixCols("t", taskCols)+`
		 FROM task_schedules ts
		 JOIN tasks t ON t.id = ts.task_id
		 WHERE ts.scheduled_date = ?
		   AND t.deleted_at IS NULL
		   AND t.archived_at IS NULL
		   AND NOT (
		       t.recurrence_id IS NOT NULL
		       AND t.recurrence_original_date IS NOT NULL
		       AND t.recurrence_original_date < ?
		       AND EXISTS (
		           SELECT 1 FROM recurrence_rules r
		           WHERE r.id = t.recurrence_id AND r.expiry_behavior = ?
		       )
		   )
		 ORDER BY t.created_at ASC, t.id ASC`,
		date, today, string(model.ExpiryExpire),
	)
}
