package model

import (
	"time"

	"github.com/dukerupert/cadence/internal/recurrence"
)

// Kind selects which base entity a recurrence materializes into.
type Kind string

const (
	KindTask      Kind = "task"
	KindTimeBlock Kind = "time_block"
)

func (k Kind) Valid() bool {
	return k == KindTask || k == KindTimeBlock
}

type TimeType string

const (
	TimeTypeFloating TimeType = "FLOATING"
	TimeTypeFixed    TimeType = "FIXED"
)

func (t TimeType) Valid() bool {
	return t == TimeTypeFloating || t == TimeTypeFixed
}

type ExpiryBehavior string

const (
	ExpiryCarryover ExpiryBehavior = "CARRYOVER_TO_STAGING"
	ExpiryExpire    ExpiryBehavior = "EXPIRE"
)

type RecurrenceRule struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	TemplateID     string         `json:"template_id"`
	Rule           string         `json:"rule"`
	TimeType       TimeType       `json:"time_type"`
	StartDate      *string        `json:"start_date"`
	EndDate        *string        `json:"end_date"`
	Timezone       *string        `json:"timezone"`
	IsActive       bool           `json:"is_active"`
	ExpiryBehavior ExpiryBehavior `json:"expiry_behavior"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// StoppedAt is set while the rule is stopped. EndDateBeforeStop keeps
	// the end date it had before the first stop so resume can restore it.
	StoppedAt         *time.Time `json:"stopped_at"`
	EndDateBeforeStop *string    `json:"end_date_before_stop"`

	// Parsed is the validated form of Rule. It is zero when the stored
	// expression no longer parses.
	Parsed recurrence.Rule `json:"-"`
}

// EffectiveOn reports whether the rule is active and date (YYYY-MM-DD)
// falls inside its validity window.
func (r RecurrenceRule) EffectiveOn(date string) bool {
	if !r.IsActive {
		return false
	}
	if r.StartDate != nil && date < *r.StartDate {
		return false
	}
	if r.EndDate != nil && date > *r.EndDate {
		return false
	}
	return true
}

// AnchorDate is the reference point the rule expression is expanded from:
// the start date if set, otherwise the creation date.
func (r RecurrenceRule) AnchorDate() time.Time {
	if r.StartDate != nil {
		if d, err := ParseDate(*r.StartDate); err == nil {
			return d
		}
	}
	return DateOf(r.CreatedAt)
}

// RecurrenceLink is the ledger row tying one occurrence of a rule to the
// instance materialized for it.
type RecurrenceLink struct {
	RecurrenceID   string    `json:"recurrence_id"`
	OccurrenceDate string    `json:"occurrence_date"`
	InstanceID     string    `json:"instance_id"`
	CreatedAt      time.Time `json:"created_at"`
}
