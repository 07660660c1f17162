package model

import "time"

// InstanceTemplate is the stamp copied into every new instance of a rule.
type InstanceTemplate struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	GlanceNote        *string   `json:"glance_note"`
	DetailNote        *string   `json:"detail_note"`
	EstimatedDuration *int      `json:"estimated_duration"`
	DurationMinutes   *int      `json:"duration_minutes"`
	StartTimeLocal    string    `json:"start_time_local"`
	IsAllDay          bool      `json:"is_all_day"`
	AreaID            *string   `json:"area_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	IsDeleted         bool      `json:"is_deleted"`
}

// DefaultBlockMinutes is used when a template has no duration.
const DefaultBlockMinutes = 60

func (t InstanceTemplate) BlockMinutes() int {
	if t.DurationMinutes != nil && *t.DurationMinutes > 0 {
		return *t.DurationMinutes
	}
	return DefaultBlockMinutes
}
