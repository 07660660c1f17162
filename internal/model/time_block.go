package model

import "time"

type TimeBlock struct {
	ID                     string     `json:"id"`
	Title                  *string    `json:"title"`
	GlanceNote             *string    `json:"glance_note"`
	DetailNote             *string    `json:"detail_note"`
	StartTime              time.Time  `json:"start_time"`
	EndTime                time.Time  `json:"end_time"`
	StartTimeLocal         *string    `json:"start_time_local"`
	EndTimeLocal           *string    `json:"end_time_local"`
	TimeType               TimeType   `json:"time_type"`
	IsAllDay               bool       `json:"is_all_day"`
	AreaID                 *string    `json:"area_id"`
	SourceType             SourceType `json:"source_type"`
	IsDeleted              bool       `json:"is_deleted"`
	RecurrenceID           *string    `json:"recurrence_id"`
	RecurrenceOriginalDate *string    `json:"recurrence_original_date"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
