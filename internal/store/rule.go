package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
)

type RuleStore struct {
	db DBTX
}

func NewRuleStore(db DBTX) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) WithTx(tx *sql.Tx) *RuleStore {
	return &RuleStore{db: tx}
}

const ruleCols = `id, kind, template_id, rule, time_type, start_date, end_date, timezone, is_active, expiry_behavior, created_at, updated_at, stopped_at, end_date_before_stop`

func scanRule(row scanner) (*model.RecurrenceRule, error) {
	var r model.RecurrenceRule
	var kind, timeType, expiry string
	var startDate, endDate, tz, beforeStop sql.NullString
	var stopped sql.NullTime
	var active int

	err := row.Scan(
		&r.ID, &kind, &r.TemplateID, &r.Rule, &timeType, &startDate, &endDate, &tz,
		&active, &expiry, &r.CreatedAt, &r.UpdatedAt, &stopped, &beforeStop,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = model.Kind(kind)
	r.TimeType = model.TimeType(timeType)
	r.ExpiryBehavior = model.ExpiryBehavior(expiry)
	r.StartDate = stringPtr(startDate)
	r.EndDate = stringPtr(endDate)
	r.Timezone = stringPtr(tz)
	r.IsActive = active != 0
	r.StoppedAt = timePtr(stopped)
	r.EndDateBeforeStop = stringPtr(beforeStop)

	// Rules are validated on the way in; a stored rule that no longer
	// parses keeps a zero Parsed value and never matches.
	if parsed, err := recurrence.Parse(r.Rule); err == nil {
		r.Parsed = parsed
	}
	return &r, nil
}

func (s *RuleStore) Create(ctx context.Context, r model.RecurrenceRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurrence_rules (`+ruleCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.TemplateID, r.Rule, string(r.TimeType),
		nullString(r.StartDate), nullString(r.EndDate), nullString(r.Timezone),
		boolInt(r.IsActive), string(r.ExpiryBehavior), utc(r.CreatedAt), utc(r.UpdatedAt),
		nullTime(r.StoppedAt), nullString(r.EndDateBeforeStop),
	)
	if err != nil {
		return fmt.Errorf("insert recurrence rule: %w", err)
	}
	return nil
}

func (s *RuleStore) GetByID(ctx context.Context, id string) (*model.RecurrenceRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleCols+` FROM recurrence_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurrence rule: %w", err)
	}
	return r, nil
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]model.RecurrenceRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurrence rules: %w", err)
	}
	defer rows.Close()

	var rules []model.RecurrenceRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurrence rule: %w", err)
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *RuleStore) List(ctx context.Context, kind model.Kind) ([]model.RecurrenceRule, error) {
	return s.list(ctx,
		`SELECT `+ruleCols+` FROM recurrence_rules WHERE kind = ? ORDER BY created_at ASC, id ASC`,
		string(kind),
	)
}

// ListEffective returns active rules of one kind whose validity window
// contains date (YYYY-MM-DD).
func (s *RuleStore) ListEffective(ctx context.Context, kind model.Kind, date string) ([]model.RecurrenceRule, error) {
	return s.list(ctx,
		`SELECT `+ruleCols+` FROM recurrence_rules
		 WHERE kind = ?
		   AND is_active = 1
		   AND (start_date IS NULL OR start_date <= ?)
		   AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY created_at ASC, id ASC`,
		string(kind), date, date,
	)
}

func (s *RuleStore) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_rules SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("set recurrence active: %w", err)
	}
	return expectOne(res, "set recurrence active")
}

// Stop sets end_date to stopDate and marks the rule stopped. The end date
// in force before the first stop is kept for Unstop.
func (s *RuleStore) Stop(ctx context.Context, id, stopDate string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_rules
		 SET end_date_before_stop = CASE WHEN stopped_at IS NULL THEN end_date ELSE end_date_before_stop END,
		     end_date = ?, stopped_at = ?, updated_at = ?
		 WHERE id = ?`,
		stopDate, utc(now), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("stop recurrence: %w", err)
	}
	return expectOne(res, "stop recurrence")
}

// Unstop restores the pre-stop end date, clears the stop marker and
// reactivates the rule.
func (s *RuleStore) Unstop(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_rules
		 SET end_date = end_date_before_stop, end_date_before_stop = NULL,
		     stopped_at = NULL, is_active = 1, updated_at = ?
		 WHERE id = ? AND stopped_at IS NOT NULL`,
		utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("unstop recurrence: %w", err)
	}
	return expectOne(res, "unstop recurrence")
}

func (s *RuleStore) SetExpiryBehavior(ctx context.Context, id string, behavior model.ExpiryBehavior, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_rules SET expiry_behavior = ?, updated_at = ? WHERE id = ?`,
		string(behavior), utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("set expiry behavior: %w", err)
	}
	return expectOne(res, "set expiry behavior")
}

func (s *RuleStore) HardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurrence rule: %w", err)
	}
	return expectOne(res, "delete recurrence rule")
}
