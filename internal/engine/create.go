package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
)

// DefaultStartTimeLocal is used when a template omits its wall-clock start.
const DefaultStartTimeLocal = "09:00:00"

// TemplateFields is the editable part of an instance template.
type TemplateFields struct {
	Title             string
	GlanceNote        *string
	DetailNote        *string
	EstimatedDuration *int
	DurationMinutes   *int
	StartTimeLocal    string
	IsAllDay          bool
	AreaID            *string
}

type CreateRecurrenceInput struct {
	Kind           model.Kind
	Rule           string
	TimeType       model.TimeType
	StartDate      *string
	EndDate        *string
	Timezone       *string
	ExpiryBehavior model.ExpiryBehavior
	Template       TemplateFields

	// SeedInstanceID names an existing task or time block (matching Kind)
	// that becomes the occurrence on StartDate instead of a generated one.
	SeedInstanceID *string
}

// CreateRecurrence validates the input, stores the template and rule
// together, and links the optional seed instance, all in one transaction.
func (e *Engine) CreateRecurrence(ctx context.Context, in CreateRecurrenceInput) (*model.RecurrenceRule, error) {
	parsed, err := validateCreate(&in)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	tpl := model.InstanceTemplate{
		ID:        e.ids.NewID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTemplateFields(&tpl, in.Template)

	rule := model.RecurrenceRule{
		ID:             e.ids.NewID(),
		Kind:           in.Kind,
		TemplateID:     tpl.ID,
		Rule:           parsed.String(),
		TimeType:       in.TimeType,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Timezone:       in.Timezone,
		IsActive:       true,
		ExpiryBehavior: in.ExpiryBehavior,
		CreatedAt:      now,
		UpdatedAt:      now,
		Parsed:         parsed,
	}

	err = e.write(ctx, func(s stores) error {
		if err := checkArea(ctx, s, tpl.AreaID); err != nil {
			return err
		}
		if err := s.templates.Create(ctx, tpl); err != nil {
			return err
		}
		if err := s.rules.Create(ctx, rule); err != nil {
			return err
		}
		if in.SeedInstanceID != nil {
			return e.linkSeed(ctx, s, rule, *in.SeedInstanceID, now)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create recurrence: %w", err)
	}

	attrs := map[string]string{"kind": string(rule.Kind), "rule": rule.Rule}
	if in.SeedInstanceID != nil {
		attrs["seed_instance_id"] = *in.SeedInstanceID
	}
	e.emit(ctx, []Fact{{Type: FactRecurrenceCreated, EntityID: rule.ID, Attrs: attrs}})
	return &rule, nil
}

// linkSeed records the seed as the occurrence on the rule's start date. The
// seed must be live, unclaimed by another rule, and dated on that day.
func (e *Engine) linkSeed(ctx context.Context, s stores, rule model.RecurrenceRule, seedID string, now time.Time) error {
	start := *rule.StartDate

	switch rule.Kind {
	case model.KindTask:
		task, err := s.tasks.GetByID(ctx, seedID)
		if err != nil {
			return err
		}
		if task == nil || task.IsDeleted() {
			return notFound("task", seedID)
		}
		if task.RecurrenceID != nil {
			return invalid("seed_instance_id", CodeInvalidValue, "task %s already belongs to recurrence %s", seedID, *task.RecurrenceID)
		}
		dates, err := s.tasks.ListScheduleDates(ctx, seedID)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return invalid("seed_instance_id", CodeSeedDateMismatch, "task %s is not scheduled, start date is %s", seedID, start)
		}
		if dates[0] != start {
			return invalid("seed_instance_id", CodeSeedDateMismatch, "task %s is scheduled on %s, start date is %s", seedID, dates[0], start)
		}
		if err := s.tasks.SetRecurrence(ctx, seedID, rule.ID, start, now); err != nil {
			return err
		}

	case model.KindTimeBlock:
		block, err := s.blocks.GetByID(ctx, seedID)
		if err != nil {
			return err
		}
		if block == nil || block.IsDeleted {
			return notFound("time block", seedID)
		}
		if block.RecurrenceID != nil {
			return invalid("seed_instance_id", CodeInvalidValue, "time block %s already belongs to recurrence %s", seedID, *block.RecurrenceID)
		}
		loc, err := e.ruleLocation(rule)
		if err != nil {
			return err
		}
		if d := block.StartTime.In(loc).Format(model.DateLayout); d != start {
			return invalid("seed_instance_id", CodeSeedDateMismatch, "time block %s starts on %s, start date is %s", seedID, d, start)
		}
		if err := s.blocks.SetRecurrence(ctx, seedID, rule.ID, start, now); err != nil {
			return err
		}
	}

	inserted, err := s.links.Insert(ctx, model.RecurrenceLink{
		RecurrenceID:   rule.ID,
		OccurrenceDate: start,
		InstanceID:     seedID,
		CreatedAt:      now,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("seed link for %s on %s: %w", rule.ID, start, errLinkTaken)
	}
	return nil
}

// validateCreate normalizes defaults in place and returns the parsed rule.
func validateCreate(in *CreateRecurrenceInput) (recurrence.Rule, error) {
	if !in.Kind.Valid() {
		return recurrence.Rule{}, invalid("kind", CodeInvalidValue, "unknown kind %q", in.Kind)
	}

	parsed, err := recurrence.Parse(in.Rule)
	if err != nil {
		return recurrence.Rule{}, invalid("rule", CodeInvalidRule, "%v", err)
	}

	if in.TimeType == "" {
		in.TimeType = model.TimeTypeFloating
	}
	if !in.TimeType.Valid() {
		return recurrence.Rule{}, invalid("time_type", CodeInvalidValue, "unknown time type %q", in.TimeType)
	}

	if in.ExpiryBehavior == "" {
		in.ExpiryBehavior = model.ExpiryCarryover
	}
	if err := validateExpiry(in.ExpiryBehavior); err != nil {
		return recurrence.Rule{}, err
	}

	if in.Timezone != nil && *in.Timezone != "" {
		if _, err := time.LoadLocation(*in.Timezone); err != nil {
			return recurrence.Rule{}, invalid("timezone", CodeInvalidValue, "unknown timezone %q", *in.Timezone)
		}
	}

	var start, end time.Time
	if in.StartDate != nil {
		if start, err = model.ParseDate(*in.StartDate); err != nil {
			return recurrence.Rule{}, invalid("start_date", CodeInvalidDate, "start date must be YYYY-MM-DD, got %q", *in.StartDate)
		}
	}
	if in.EndDate != nil {
		if end, err = model.ParseDate(*in.EndDate); err != nil {
			return recurrence.Rule{}, invalid("end_date", CodeInvalidDate, "end date must be YYYY-MM-DD, got %q", *in.EndDate)
		}
	}
	if in.StartDate != nil && in.EndDate != nil && end.Before(start) {
		return recurrence.Rule{}, invalid("end_date", CodeInvalidDateRange, "end date %s is before start date %s", *in.EndDate, *in.StartDate)
	}
	if until, ok := parsed.UntilDate(); ok && in.EndDate != nil && until != *in.EndDate {
		return recurrence.Rule{}, invalid("end_date", CodeUntilMismatch, "rule UNTIL %s and end date %s disagree; omit UNTIL and use the end date", until, *in.EndDate)
	}

	if in.SeedInstanceID != nil && in.StartDate == nil {
		return recurrence.Rule{}, invalid("start_date", CodeRequired, "start date is required with a seed instance")
	}

	if err := validateTemplateFields(&in.Template); err != nil {
		return recurrence.Rule{}, err
	}
	return parsed, nil
}

func validateExpiry(b model.ExpiryBehavior) error {
	if b != model.ExpiryCarryover && b != model.ExpiryExpire {
		return invalid("expiry_behavior", CodeInvalidValue, "unknown expiry behavior %q", b)
	}
	return nil
}

func validateTemplateFields(f *TemplateFields) error {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return invalid("title", CodeRequired, "title is required")
	}
	if f.StartTimeLocal == "" {
		f.StartTimeLocal = DefaultStartTimeLocal
	}
	if _, err := time.Parse(clockLayout, f.StartTimeLocal); err != nil || len(f.StartTimeLocal) != len(clockLayout) {
		return invalid("start_time_local", CodeInvalidTime, "start time must be HH:MM:SS, got %q", f.StartTimeLocal)
	}
	if f.DurationMinutes != nil && *f.DurationMinutes <= 0 {
		return invalid("duration_minutes", CodeInvalidValue, "duration must be positive")
	}
	if f.EstimatedDuration != nil && *f.EstimatedDuration < 0 {
		return invalid("estimated_duration", CodeInvalidValue, "estimated duration must not be negative")
	}
	return nil
}

func applyTemplateFields(t *model.InstanceTemplate, f TemplateFields) {
	t.Title = f.Title
	t.GlanceNote = f.GlanceNote
	t.DetailNote = f.DetailNote
	t.EstimatedDuration = f.EstimatedDuration
	t.DurationMinutes = f.DurationMinutes
	t.StartTimeLocal = f.StartTimeLocal
	t.IsAllDay = f.IsAllDay
	t.AreaID = f.AreaID
}
