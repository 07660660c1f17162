package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

type AreaStore struct {
	db DBTX
}

func NewAreaStore(db DBTX) *AreaStore {
	return &AreaStore{db: db}
}

func (s *AreaStore) WithTx(tx *sql.Tx) *AreaStore {
	return &AreaStore{db: tx}
}

const areaCols = `id, name, color, created_at, updated_at`

func scanArea(row scanner) (*model.Area, error) {
	var a model.Area
	if err := row.Scan(&a.ID, &a.Name, &a.Color, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AreaStore) Create(ctx context.Context, id, name, color string, now time.Time) (*model.Area, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO areas (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, color, utc(now), utc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert area: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AreaStore) GetByID(ctx context.Context, id string) (*model.Area, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+areaCols+` FROM areas WHERE id = ?`, id)
	a, err := scanArea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get area: %w", err)
	}
	return a, nil
}

func (s *AreaStore) List(ctx context.Context) ([]model.Area, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+areaCols+` FROM areas ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()

	var areas []model.Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		areas = append(areas, *a)
	}
	return areas, rows.Err()
}
