package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/cadence/internal/model"
)

// LinkStore is the instantiation ledger: one row per (recurrence, date).
type LinkStore struct {
	db DBTX
}

func NewLinkStore(db DBTX) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) WithTx(tx *sql.Tx) *LinkStore {
	return &LinkStore{db: tx}
}

const linkCols = `recurrence_id, occurrence_date, instance_id, created_at`

func scanLink(row scanner) (*model.RecurrenceLink, error) {
	var l model.RecurrenceLink
	if err := row.Scan(&l.RecurrenceID, &l.OccurrenceDate, &l.InstanceID, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *LinkStore) Find(ctx context.Context, recurrenceID, date string) (*model.RecurrenceLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkCols+` FROM recurrence_links WHERE recurrence_id = ? AND occurrence_date = ?`,
		recurrenceID, date,
	)
	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recurrence link: %w", err)
	}
	return l, nil
}

// Insert records a link. It reports false, without error, when a link for
// the same (recurrence, date) already exists.
func (s *LinkStore) Insert(ctx context.Context, l model.RecurrenceLink) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recurrence_links (`+linkCols+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT (recurrence_id, occurrence_date) DO NOTHING`,
		l.RecurrenceID, l.OccurrenceDate, l.InstanceID, utc(l.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert recurrence link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert recurrence link: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *LinkStore) Delete(ctx context.Context, recurrenceID, date string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recurrence_links WHERE recurrence_id = ? AND occurrence_date = ?`,
		recurrenceID, date,
	)
	if err != nil {
		return fmt.Errorf("delete recurrence link: %w", err)
	}
	return nil
}

func (s *LinkStore) DeleteByRecurrence(ctx context.Context, recurrenceID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_links WHERE recurrence_id = ?`, recurrenceID)
	if err != nil {
		return 0, fmt.Errorf("delete recurrence links: %w", err)
	}
	return res.RowsAffected()
}

func (s *LinkStore) DeleteByInstance(ctx context.Context, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_links WHERE instance_id = ?`, instanceID)
	if err != nil {
		return fmt.Errorf("delete instance links: %w", err)
	}
	return nil
}

func (s *LinkStore) ListByRecurrence(ctx context.Context, recurrenceID string) ([]model.RecurrenceLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkCols+` FROM recurrence_links WHERE recurrence_id = ? ORDER BY occurrence_date ASC`,
		recurrenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurrence links: %w", err)
	}
	defer rows.Close()

	var links []model.RecurrenceLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurrence link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// CountByRecurrence reports how many ledger rows reference the rule.
func (s *LinkStore) CountByRecurrence(ctx context.Context, recurrenceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurrence_links WHERE recurrence_id = ?`, recurrenceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recurrence links: %w", err)
	}
	return n, nil
}
