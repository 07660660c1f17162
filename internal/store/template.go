package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/cadence/internal/model"
)

type TemplateStore struct {
	db DBTX
}

func NewTemplateStore(db DBTX) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) WithTx(tx *sql.Tx) *TemplateStore {
	return &TemplateStore{db: tx}
}

const templateCols = `id, title, glance_note, detail_note, estimated_duration, duration_minutes, start_time_local, is_all_day, area_id, created_at, updated_at, is_deleted`

func scanTemplate(row scanner) (*model.InstanceTemplate, error) {
	var t model.InstanceTemplate
	var glance, detail, areaID sql.NullString
	var estimated, duration sql.NullInt64
	var allDay, deleted int

	err := row.Scan(
		&t.ID, &t.Title, &glance, &detail, &estimated, &duration,
		&t.StartTimeLocal, &allDay, &areaID, &t.CreatedAt, &t.UpdatedAt, &deleted,
	)
	if err != nil {
		return nil, err
	}

	t.GlanceNote = stringPtr(glance)
	t.DetailNote = stringPtr(detail)
	t.EstimatedDuration = intPtr(estimated)
	t.DurationMinutes = intPtr(duration)
	t.AreaID = stringPtr(areaID)
	t.IsAllDay = allDay != 0
	t.IsDeleted = deleted != 0
	return &t, nil
}

func (s *TemplateStore) Create(ctx context.Context, t model.InstanceTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instance_templates (`+templateCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullString(t.GlanceNote), nullString(t.DetailNote),
		nullInt(t.EstimatedDuration), nullInt(t.DurationMinutes), t.StartTimeLocal,
		boolInt(t.IsAllDay), nullString(t.AreaID), utc(t.CreatedAt), utc(t.UpdatedAt), boolInt(t.IsDeleted),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetByID returns the template, including soft-deleted ones, or nil.
func (s *TemplateStore) GetByID(ctx context.Context, id string) (*model.InstanceTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateCols+` FROM instance_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// Update rewrites the stamp. Instances already materialized are copies and
// are not touched.
func (s *TemplateStore) Update(ctx context.Context, t model.InstanceTemplate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE instance_templates
		 SET title = ?, glance_note = ?, detail_note = ?, estimated_duration = ?, duration_minutes = ?,
		     start_time_local = ?, is_all_day = ?, area_id = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, nullString(t.GlanceNote), nullString(t.DetailNote), nullInt(t.EstimatedDuration),
		nullInt(t.DurationMinutes), t.StartTimeLocal, boolInt(t.IsAllDay), nullString(t.AreaID),
		utc(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return expectOne(res, "update template")
}

func (s *TemplateStore) HardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instance_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return expectOne(res, "delete template")
}
