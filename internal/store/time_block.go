package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

type TimeBlockStore struct {
	db DBTX
}

func NewTimeBlockStore(db DBTX) *TimeBlockStore {
	return &TimeBlockStore{db: db}
}

func (s *TimeBlockStore) WithTx(tx *sql.Tx) *TimeBlockStore {
	return &TimeBlockStore{db: tx}
}

const timeBlockCols = `id, title, glance_note, detail_note, start_time, end_time, start_time_local, end_time_local, time_type, is_all_day, area_id, source_type, is_deleted, recurrence_id, recurrence_original_date, created_at, updated_at`

func scanTimeBlock(row scanner) (*model.TimeBlock, error) {
	var b model.TimeBlock
	var title, glance, detail, startLocal, endLocal, areaID, recID, recDate sql.NullString
	var timeType, source string
	var allDay, deleted int

	err := row.Scan(
		&b.ID, &title, &glance, &detail, &b.StartTime, &b.EndTime, &startLocal, &endLocal,
		&timeType, &allDay, &areaID, &source, &deleted, &recID, &recDate,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Title = stringPtr(title)
	b.GlanceNote = stringPtr(glance)
	b.DetailNote = stringPtr(detail)
	b.StartTimeLocal = stringPtr(startLocal)
	b.EndTimeLocal = stringPtr(endLocal)
	b.TimeType = model.TimeType(timeType)
	b.IsAllDay = allDay != 0
	b.AreaID = stringPtr(areaID)
	b.SourceType = model.SourceType(source)
	b.IsDeleted = deleted != 0
	b.RecurrenceID = stringPtr(recID)
	b.RecurrenceOriginalDate = stringPtr(recDate)
	return &b, nil
}

func (s *TimeBlockStore) Create(ctx context.Context, b model.TimeBlock) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO time_blocks (`+timeBlockCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, nullString(b.Title), nullString(b.GlanceNote), nullString(b.DetailNote),
		utc(b.StartTime), utc(b.EndTime), nullString(b.StartTimeLocal), nullString(b.EndTimeLocal),
		string(b.TimeType), boolInt(b.IsAllDay), nullString(b.AreaID), string(b.SourceType),
		boolInt(b.IsDeleted), nullString(b.RecurrenceID), nullString(b.RecurrenceOriginalDate),
		utc(b.CreatedAt), utc(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert time block: %w", err)
	}
	return nil
}

// GetByID returns the block, including soft-deleted ones, or nil.
func (s *TimeBlockStore) GetByID(ctx context.Context, id string) (*model.TimeBlock, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timeBlockCols+` FROM time_blocks WHERE id = ?`, id)
	b, err := scanTimeBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time block: %w", err)
	}
	return b, nil
}

func (s *TimeBlockStore) list(ctx context.Context, query string, args ...any) ([]model.TimeBlock, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		b, err := scanTimeBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func (s *TimeBlockStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE time_blocks SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete time block: %w", err)
	}
	return nil
}

func (s *TimeBlockStore) SetRecurrence(ctx context.Context, id, recurrenceID, date string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_blocks SET recurrence_id = ?, recurrence_original_date = ?, updated_at = ? WHERE id = ?`,
		recurrenceID, date, utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("set time block recurrence: %w", err)
	}
	return expectOne(res, "set time block recurrence")
}

func (s *TimeBlockStore) ClearRecurrence(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE time_blocks SET recurrence_id = NULL, recurrence_original_date = NULL, updated_at = ? WHERE id = ?`,
		utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("clear time block recurrence: %w", err)
	}
	return nil
}

func (s *TimeBlockStore) ClearRecurrenceByRule(ctx context.Context, recurrenceID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_blocks SET recurrence_id = NULL, recurrence_original_date = NULL, updated_at = ? WHERE recurrence_id = ?`,
		utc(now), recurrenceID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear time blocks recurrence: %w", err)
	}
	return res.RowsAffected()
}

// ListLiveIDsByRecurrence returns linked blocks that are not deleted and
// whose occurrence date is on or after fromDate.
func (s *TimeBlockStore) ListLiveIDsByRecurrence(ctx context.Context, recurrenceID, fromDate string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id
		 FROM recurrence_links l
		 JOIN time_blocks b ON b.id = l.instance_id
		 WHERE l.recurrence_id = ?
		   AND b.is_deleted = 0
		   AND l.occurrence_date >= ?
		 ORDER BY l.occurrence_date ASC`,
		recurrenceID, fromDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list live time blocks: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan live time blocks: %w", err)
	}
	return ids, nil
}

func (s *TimeBlockStore) ListByRecurrence(ctx context.Context, recurrenceID string) ([]model.TimeBlock, error) {
	return s.list(ctx,
		`SELECT `+timeBlockCols+` FROM time_blocks WHERE recurrence_id = ? ORDER BY recurrence_original_date ASC`,
		recurrenceID,
	)
}

// ListForRange returns live blocks overlapping [start, end). Recurring
// instances from an EXPIRE rule dated before today are filtered out.
func (s *TimeBlockStore) ListForRange(ctx context.Context, start, end time.Time, today string) ([]model.TimeBlock, error) {
	return s.list(ctx,
		`SELECT `+prefixCols("b", timeBlockCols)+`
		 FROM time_blocks b
		 WHERE b.is_deleted = 0
		   AND b.start_time < ?
		   AND b.end_time > ?
		   AND NOT (
		       b.recurrence_id IS NOT NULL
		       AND b.recurrence_original_date IS NOT NULL
		       AND b.recurrence_original_date < ?
		       AND EXISTS (
		           SELECT 1 FROM recurrence_rules r
		           WHERE r.id = b.recurrence_id AND r.expiry_behavior = ?
		       )
		   )
		 ORDER BY b.start_time ASC, b.id ASC`,
		utc(end), utc(start), today, string(model.ExpiryExpire),
	)
}
