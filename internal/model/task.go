package model

import (
	"encoding/json"
	"slices"
	"time"
)

// SourceType records where an entity came from.
type SourceType string

const (
	SourceManual                  SourceType = "manual"
	SourceExternal                SourceType = "external"
	SourceFromTask                SourceType = "from_task"
	SourceFromTemplate            SourceType = "from_template"
	SourceFromRecurrence          SourceType = "from_recurrence"
	SourceFromTimeBlockRecurrence SourceType = "from_time_block_recurrence"
)

type Task struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	GlanceNote             *string    `json:"glance_note"`
	DetailNote             *string    `json:"detail_note"`
	EstimatedDuration      *int       `json:"estimated_duration"`
	AreaID                 *string    `json:"area_id"`
	SourceType             SourceType `json:"source_type"`
	CompletedAt            *time.Time `json:"completed_at"`
	ArchivedAt             *time.Time `json:"archived_at"`
	DeletedAt              *time.Time `json:"deleted_at"`
	RecurrenceID           *string    `json:"recurrence_id"`
	RecurrenceOriginalDate *string    `json:"recurrence_original_date"`
	RecurrenceExclusions   *string    `json:"recurrence_exclusions"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (t Task) IsCompleted() bool { return t.CompletedAt != nil }
func (t Task) IsDeleted() bool   { return t.DeletedAt != nil }

// ExcludedDates decodes RecurrenceExclusions, a JSON array of occurrence
// dates removed from the series. A malformed value excludes nothing.
func (t Task) ExcludedDates() []string {
	if t.RecurrenceExclusions == nil {
		return nil
	}
	var dates []string
	if err := json.Unmarshal([]byte(*t.RecurrenceExclusions), &dates); err != nil {
		return nil
	}
	return dates
}

func (t Task) Excludes(date string) bool {
	return slices.Contains(t.ExcludedDates(), date)
}

// WithExclusion returns the encoded exclusion list with date added.
func (t Task) WithExclusion(date string) (string, error) {
	dates := t.ExcludedDates()
	if !slices.Contains(dates, date) {
		dates = append(dates, date)
		slices.Sort(dates)
	}
	b, err := json.Marshal(dates)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type TaskSchedule struct {
	TaskID        string    `json:"task_id"`
	ScheduledDate string    `json:"scheduled_date"`
	CreatedAt     time.Time `json:"created_at"`
}
