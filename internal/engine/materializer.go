package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

// MaxRangeDays bounds a single MaterializeRange call.
const MaxRangeDays = 366

// errLinkTaken aborts a creation whose occurrence another writer already
// recorded.
var errLinkTaken = errors.New("occurrence already linked")

// errWithdrawn aborts a creation whose rule or template was deleted, paused
// or narrowed after it was read. Nothing is written for the occurrence.
var errWithdrawn = errors.New("recurrence withdrawn")

// errExcluded marks an occurrence whose task the user deleted; the date
// stays skipped instead of being healed.
var errExcluded = errors.New("occurrence excluded")

// EnsureMaterialized guarantees that every active rule of kind firing on
// date has exactly one live instance for it, and returns those instance
// ids. A failing rule does not stop the others; failures are joined into
// the returned error.
func (e *Engine) EnsureMaterialized(ctx context.Context, kind model.Kind, date string) ([]string, error) {
	if !kind.Valid() {
		return nil, invalid("kind", CodeInvalidValue, "unknown kind %q", kind)
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, invalid("date", CodeInvalidDate, "date must be YYYY-MM-DD, got %q", date)
	}
	date = model.FormatDate(day)

	rules, err := e.stores.rules.ListEffective(ctx, kind, date)
	if err != nil {
		return nil, fmt.Errorf("ensure materialized: %w", err)
	}

	var ids []string
	var errs []error
	for _, rule := range rules {
		if rule.Parsed.IsZero() {
			e.logger.Error("stored recurrence rule does not parse", "recurrence_id", rule.ID, "rule", rule.Rule)
			continue
		}
		if !e.calc.Matches(rule.Parsed, rule.AnchorDate(), day) {
			continue
		}

		id, err := e.materialize(ctx, rule, day)
		if errors.Is(err, errWithdrawn) || errors.Is(err, errExcluded) {
			continue
		}
		if err != nil {
			e.logger.Error("materialize occurrence", "recurrence_id", rule.ID, "date", date, "error", err)
			errs = append(errs, fmt.Errorf("recurrence %s on %s: %w", rule.ID, date, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}

// MaterializeRange runs EnsureMaterialized for each date in [from, to].
func (e *Engine) MaterializeRange(ctx context.Context, kind model.Kind, from, to string) (map[string][]string, error) {
	start, err := model.ParseDate(from)
	if err != nil {
		return nil, invalid("from", CodeInvalidDate, "date must be YYYY-MM-DD, got %q", from)
	}
	end, err := model.ParseDate(to)
	if err != nil {
		return nil, invalid("to", CodeInvalidDate, "date must be YYYY-MM-DD, got %q", to)
	}
	if end.Before(start) {
		return nil, invalid("to", CodeInvalidDateRange, "to %s is before from %s", to, from)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return nil, invalid("to", CodeInvalidDateRange, "range of %d days exceeds %d", days, MaxRangeDays)
	}

	out := make(map[string][]string)
	var errs []error
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		date := model.FormatDate(d)
		ids, err := e.EnsureMaterialized(ctx, kind, date)
		if err != nil {
			errs = append(errs, err)
		}
		if len(ids) > 0 {
			out[date] = ids
		}
	}
	return out, errors.Join(errs...)
}

// materialize returns the live instance for (rule, day), creating it when
// the ledger has none or points at an instance that is gone.
func (e *Engine) materialize(ctx context.Context, rule model.RecurrenceRule, day time.Time) (string, error) {
	date := model.FormatDate(day)

	link, err := e.stores.links.Find(ctx, rule.ID, date)
	if err != nil {
		return "", err
	}
	if link != nil {
		state, err := linkedInstance(ctx, e.stores, rule.Kind, link.InstanceID, date)
		if err != nil {
			return "", err
		}
		switch state {
		case instanceLive:
			return link.InstanceID, nil
		case instanceExcluded:
			return "", errExcluded
		}
	}

	// The template is read and rendered before the write transaction opens.
	tpl, err := e.stores.templates.GetByID(ctx, rule.TemplateID)
	if err != nil {
		return "", err
	}
	if tpl == nil || tpl.IsDeleted {
		return "", notFound("template", rule.TemplateID)
	}
	now := e.clock.Now()
	inst, err := e.buildInstance(rule, *tpl, day, now)
	if err != nil {
		return "", err
	}

	var healed string
	err = e.write(ctx, func(s stores) error {
		// Rendering ran outside the permit; the rule and template may have
		// changed since they were read.
		current, err := s.rules.GetByID(ctx, rule.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.EffectiveOn(date) {
			return errWithdrawn
		}
		fresh, err := s.templates.GetByID(ctx, current.TemplateID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.IsDeleted {
			return errWithdrawn
		}
		if fresh.ID != tpl.ID || !fresh.UpdatedAt.Equal(tpl.UpdatedAt) {
			if inst, err = e.buildInstance(*current, *fresh, day, now); err != nil {
				return err
			}
		}

		existing, err := s.links.Find(ctx, rule.ID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			state, err := linkedInstance(ctx, s, rule.Kind, existing.InstanceID, date)
			if err != nil {
				return err
			}
			switch state {
			case instanceLive:
				return errLinkTaken
			case instanceExcluded:
				return errExcluded
			}
			if err := s.links.Delete(ctx, rule.ID, date); err != nil {
				return err
			}
			healed = existing.InstanceID
		}

		if err := inst.insert(ctx, s); err != nil {
			return err
		}
		inserted, err := s.links.Insert(ctx, model.RecurrenceLink{
			RecurrenceID:   rule.ID,
			OccurrenceDate: date,
			InstanceID:     inst.id(),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return errLinkTaken
		}
		return nil
	})
	if errors.Is(err, errLinkTaken) {
		winner, err := e.stores.links.Find(ctx, rule.ID, date)
		if err != nil {
			return "", err
		}
		if winner == nil {
			return "", fmt.Errorf("link for %s on %s disappeared", rule.ID, date)
		}
		return winner.InstanceID, nil
	}
	if errors.Is(err, errWithdrawn) {
		e.logger.Info("recurrence withdrawn while materializing, nothing created", "recurrence_id", rule.ID, "date", date)
		return "", err
	}
	if err != nil {
		return "", err
	}

	facts := []Fact{{
		Type:     FactInstanceMaterialized,
		EntityID: inst.id(),
		Attrs:    map[string]string{"kind": string(rule.Kind), "recurrence_id": rule.ID, "date": date},
	}}
	if healed != "" {
		e.logger.Warn("recurrence link pointed at a missing or deleted instance, recreated",
			"recurrence_id", rule.ID, "date", date, "stale_instance_id", healed, "instance_id", inst.id())
		facts = append(facts, Fact{
			Type:     FactInstanceHealed,
			EntityID: inst.id(),
			Attrs:    map[string]string{"recurrence_id": rule.ID, "date": date, "stale_instance_id": healed},
		})
	}
	e.emit(ctx, facts)
	return inst.id(), nil
}

type instanceState int

const (
	instanceStale instanceState = iota // missing or deleted behind the engine's back
	instanceLive
	instanceExcluded // task deleted through DeleteTask, its date recorded as excluded
)

// linkedInstance classifies the instance a link for date points at.
func linkedInstance(ctx context.Context, s stores, kind model.Kind, id, date string) (instanceState, error) {
	switch kind {
	case model.KindTask:
		t, err := s.tasks.GetByID(ctx, id)
		if err != nil {
			return instanceStale, err
		}
		switch {
		case t == nil:
			return instanceStale, nil
		case !t.IsDeleted():
			return instanceLive, nil
		case t.Excludes(date):
			return instanceExcluded, nil
		}
		return instanceStale, nil
	case model.KindTimeBlock:
		b, err := s.blocks.GetByID(ctx, id)
		if err != nil {
			return instanceStale, err
		}
		if b != nil && !b.IsDeleted {
			return instanceLive, nil
		}
		return instanceStale, nil
	}
	return instanceStale, fmt.Errorf("unknown kind %q", kind)
}

// instance is a fully rendered row waiting to be inserted.
type instance struct {
	date  string
	task  *model.Task
	block *model.TimeBlock
}

func (i instance) id() string {
	if i.task != nil {
		return i.task.ID
	}
	return i.block.ID
}

func (i instance) insert(ctx context.Context, s stores) error {
	if i.task != nil {
		if err := s.tasks.Create(ctx, *i.task); err != nil {
			return err
		}
		return s.tasks.AddSchedule(ctx, i.task.ID, i.date, i.task.CreatedAt)
	}
	return s.blocks.Create(ctx, *i.block)
}

func (e *Engine) buildInstance(rule model.RecurrenceRule, tpl model.InstanceTemplate, day, now time.Time) (instance, error) {
	date := model.FormatDate(day)
	vars := occurrenceVars(day)
	title := e.renderer.Render(tpl.Title, vars)
	glance := e.renderPtr(tpl.GlanceNote, vars)
	detail := e.renderPtr(tpl.DetailNote, vars)
	rid := rule.ID

	switch rule.Kind {
	case model.KindTask:
		return instance{date: date, task: &model.Task{
			ID:                     e.ids.NewID(),
			Title:                  title,
			GlanceNote:             glance,
			DetailNote:             detail,
			EstimatedDuration:      tpl.EstimatedDuration,
			AreaID:                 tpl.AreaID,
			SourceType:             model.SourceFromRecurrence,
			RecurrenceID:           &rid,
			RecurrenceOriginalDate: &date,
			CreatedAt:              now,
			UpdatedAt:              now,
		}}, nil

	case model.KindTimeBlock:
		loc, err := e.ruleLocation(rule)
		if err != nil {
			return instance{}, err
		}
		start, end, startLocal, endLocal, err := blockTimes(tpl, day, loc)
		if err != nil {
			return instance{}, err
		}
		var blockTitle *string
		if title != "" {
			blockTitle = &title
		}
		return instance{date: date, block: &model.TimeBlock{
			ID:                     e.ids.NewID(),
			Title:                  blockTitle,
			GlanceNote:             glance,
			DetailNote:             detail,
			StartTime:              start,
			EndTime:                end,
			StartTimeLocal:         startLocal,
			EndTimeLocal:           endLocal,
			TimeType:               rule.TimeType,
			IsAllDay:               tpl.IsAllDay,
			AreaID:                 tpl.AreaID,
			SourceType:             model.SourceFromTimeBlockRecurrence,
			RecurrenceID:           &rid,
			RecurrenceOriginalDate: &date,
			CreatedAt:              now,
			UpdatedAt:              now,
		}}, nil
	}
	return instance{}, fmt.Errorf("unknown kind %q", rule.Kind)
}

func (e *Engine) renderPtr(s *string, vars map[string]string) *string {
	if s == nil {
		return nil
	}
	out := e.renderer.Render(*s, vars)
	return &out
}

// ruleLocation is the rule's own zone for FIXED rules that name one, and the
// ambient zone otherwise.
func (e *Engine) ruleLocation(rule model.RecurrenceRule) (*time.Location, error) {
	if rule.TimeType == model.TimeTypeFixed && rule.Timezone != nil && *rule.Timezone != "" {
		loc, err := time.LoadLocation(*rule.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", *rule.Timezone, err)
		}
		return loc, nil
	}
	return e.loc, nil
}

const clockLayout = "15:04:05"

// blockTimes converts the template's wall-clock start and duration on day
// into absolute instants in loc.
func blockTimes(tpl model.InstanceTemplate, day time.Time, loc *time.Location) (time.Time, time.Time, *string, *string, error) {
	y, m, d := day.Date()
	if tpl.IsAllDay {
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		return start.UTC(), end.UTC(), nil, nil, nil
	}

	wall, err := time.Parse(clockLayout, tpl.StartTimeLocal)
	if err != nil {
		return time.Time{}, time.Time{}, nil, nil,
			invalid("start_time_local", CodeInvalidTime, "start time must be HH:MM:SS, got %q", tpl.StartTimeLocal)
	}
	start := time.Date(y, m, d, wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
	end := start.Add(time.Duration(tpl.BlockMinutes()) * time.Minute)
	startLocal := start.Format(clockLayout)
	endLocal := end.Format(clockLayout)
	return start.UTC(), end.UTC(), &startLocal, &endLocal, nil
}
