package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

// GetRecurrence returns the rule or a *NotFoundError.
func (e *Engine) GetRecurrence(ctx context.Context, id string) (*model.RecurrenceRule, error) {
	rule, err := e.stores.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, notFound("recurrence", id)
	}
	return rule, nil
}

func (e *Engine) ListRecurrences(ctx context.Context, kind model.Kind) ([]model.RecurrenceRule, error) {
	if !kind.Valid() {
		return nil, invalid("kind", CodeInvalidValue, "unknown kind %q", kind)
	}
	return e.stores.rules.List(ctx, kind)
}

// DeleteRecurrence removes the rule and its template. Instances that were
// still live are soft-deleted together with any auto-created blocks they
// leave orphaned; every other instance keeps its data but loses its link to
// the rule. The whole cascade commits or rolls back as one unit.
func (e *Engine) DeleteRecurrence(ctx context.Context, id string) error {
	now := e.clock.Now()
	today := e.Today()
	var facts []Fact

	err := e.write(ctx, func(s stores) error {
		rule, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return notFound("recurrence", id)
		}
		tpl, err := s.templates.GetByID(ctx, rule.TemplateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return notFound("template", rule.TemplateID)
		}

		live, err := liveInstances(ctx, s, *rule, today)
		if err != nil {
			return err
		}
		if _, err := s.links.DeleteByRecurrence(ctx, id); err != nil {
			return err
		}
		if err := clearRecurrence(ctx, s, rule.Kind, id, now); err != nil {
			return err
		}

		for _, instanceID := range live {
			orphans, err := retireInstance(ctx, s, rule.Kind, instanceID, now)
			if err != nil {
				return err
			}
			facts = append(facts, orphanFacts(orphans, instanceID)...)
		}

		if err := s.rules.HardDelete(ctx, id); err != nil {
			return err
		}
		return s.templates.HardDelete(ctx, rule.TemplateID)
	})
	if err != nil {
		return fmt.Errorf("delete recurrence %s: %w", id, err)
	}

	facts = append([]Fact{{Type: FactRecurrenceDeleted, EntityID: id}}, facts...)
	e.emit(ctx, facts)
	return nil
}

// DeactivateRecurrence pauses the rule. Instances, links and blocks are left
// alone.
func (e *Engine) DeactivateRecurrence(ctx context.Context, id string) error {
	err := e.write(ctx, func(s stores) error {
		return notFoundOnNoRows(s.rules.SetActive(ctx, id, false, e.clock.Now()), "recurrence", id)
	})
	if err != nil {
		return fmt.Errorf("deactivate recurrence %s: %w", id, err)
	}
	e.emit(ctx, []Fact{{Type: FactRecurrenceDeactivated, EntityID: id}})
	return nil
}

// ReactivateRecurrence undoes DeactivateRecurrence. Only the active flag
// changes; the validity window is left as it was. Dates skipped while the
// rule was paused are not back-filled.
func (e *Engine) ReactivateRecurrence(ctx context.Context, id string) error {
	err := e.write(ctx, func(s stores) error {
		return notFoundOnNoRows(s.rules.SetActive(ctx, id, true, e.clock.Now()), "recurrence", id)
	})
	if err != nil {
		return fmt.Errorf("reactivate recurrence %s: %w", id, err)
	}
	e.emit(ctx, []Fact{{Type: FactRecurrenceReactivated, EntityID: id}})
	return nil
}

// ResumeRecurrence undoes StopRecurrence: the end date the rule had before
// it was stopped comes back and the rule is active again. Instances retired
// by the stop stay retired; their dates materialize again only when a
// caller asks for them.
func (e *Engine) ResumeRecurrence(ctx context.Context, id string) error {
	var restored *string
	err := e.write(ctx, func(s stores) error {
		rule, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return notFound("recurrence", id)
		}
		if rule.StoppedAt == nil {
			return invalid("id", CodeNotStopped, "recurrence %s is not stopped", id)
		}
		restored = rule.EndDateBeforeStop
		return s.rules.Unstop(ctx, id, e.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("resume recurrence %s: %w", id, err)
	}
	attrs := map[string]string{}
	if restored != nil {
		attrs["end_date"] = *restored
	}
	e.emit(ctx, []Fact{{Type: FactRecurrenceResumed, EntityID: id, Attrs: attrs}})
	return nil
}

// StopRecurrence ends the rule on stopDate. Live instances dated after it
// are detached and soft-deleted; stopDate itself is kept.
func (e *Engine) StopRecurrence(ctx context.Context, id, stopDate string) error {
	stop, err := model.ParseDate(stopDate)
	if err != nil {
		return invalid("stop_date", CodeInvalidDate, "stop date must be YYYY-MM-DD, got %q", stopDate)
	}
	stopDate = model.FormatDate(stop)
	now := e.clock.Now()
	var facts []Fact

	err = e.write(ctx, func(s stores) error {
		rule, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return notFound("recurrence", id)
		}
		if rule.StartDate != nil && stopDate < *rule.StartDate {
			return invalid("stop_date", CodeInvalidDateRange, "stop date %s is before start date %s", stopDate, *rule.StartDate)
		}
		bound := rule.EndDate
		if rule.StoppedAt != nil {
			bound = rule.EndDateBeforeStop
		}
		if bound != nil && stopDate > *bound {
			return invalid("stop_date", CodeInvalidDateRange, "stop date %s is after end date %s", stopDate, *bound)
		}
		if err := s.rules.Stop(ctx, id, stopDate, now); err != nil {
			return err
		}

		var after []string
		switch rule.Kind {
		case model.KindTask:
			after, err = s.tasks.ListLiveIDsByRecurrence(ctx, id, stopDate)
		case model.KindTimeBlock:
			after, err = s.blocks.ListLiveIDsByRecurrence(ctx, id, model.FormatDate(stop.AddDate(0, 0, 1)))
		}
		if err != nil {
			return err
		}

		for _, instanceID := range after {
			if err := detach(ctx, s, rule.Kind, instanceID, now); err != nil {
				return err
			}
			orphans, err := retireInstance(ctx, s, rule.Kind, instanceID, now)
			if err != nil {
				return err
			}
			facts = append(facts, orphanFacts(orphans, instanceID)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stop recurrence %s: %w", id, err)
	}

	facts = append([]Fact{{Type: FactRecurrenceStopped, EntityID: id, Attrs: map[string]string{"stop_date": stopDate}}}, facts...)
	e.emit(ctx, facts)
	return nil
}

// SetExpiryBehavior changes how past unfinished instances are shown. It
// takes effect on the next read; no instance is written.
func (e *Engine) SetExpiryBehavior(ctx context.Context, id string, behavior model.ExpiryBehavior) error {
	if err := validateExpiry(behavior); err != nil {
		return err
	}
	err := e.write(ctx, func(s stores) error {
		return notFoundOnNoRows(s.rules.SetExpiryBehavior(ctx, id, behavior, e.clock.Now()), "recurrence", id)
	})
	if err != nil {
		return fmt.Errorf("set expiry behavior %s: %w", id, err)
	}
	return nil
}

// UpdateTemplate edits the stamp of a rule. Only future materializations see
// the change.
func (e *Engine) UpdateTemplate(ctx context.Context, templateID string, fields TemplateFields) (*model.InstanceTemplate, error) {
	if err := validateTemplateFields(&fields); err != nil {
		return nil, err
	}

	var updated model.InstanceTemplate
	err := e.write(ctx, func(s stores) error {
		tpl, err := s.templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if tpl == nil || tpl.IsDeleted {
			return notFound("template", templateID)
		}
		if err := checkArea(ctx, s, fields.AreaID); err != nil {
			return err
		}
		applyTemplateFields(tpl, fields)
		tpl.UpdatedAt = e.clock.Now()
		if err := s.templates.Update(ctx, *tpl); err != nil {
			return err
		}
		updated = *tpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update template %s: %w", templateID, err)
	}
	e.emit(ctx, []Fact{{Type: FactTemplateUpdated, EntityID: templateID}})
	return &updated, nil
}

// DetachInstance cuts an instance loose from its rule. The instance stays
// as an ordinary item and its ledger row is removed.
func (e *Engine) DetachInstance(ctx context.Context, kind model.Kind, instanceID string) error {
	if !kind.Valid() {
		return invalid("kind", CodeInvalidValue, "unknown kind %q", kind)
	}
	err := e.write(ctx, func(s stores) error {
		var recurrenceID *string
		switch kind {
		case model.KindTask:
			t, err := s.tasks.GetByID(ctx, instanceID)
			if err != nil {
				return err
			}
			if t == nil {
				return notFound("task", instanceID)
			}
			recurrenceID = t.RecurrenceID
		case model.KindTimeBlock:
			b, err := s.blocks.GetByID(ctx, instanceID)
			if err != nil {
				return err
			}
			if b == nil {
				return notFound("time block", instanceID)
			}
			recurrenceID = b.RecurrenceID
		}
		if recurrenceID == nil {
			return invalid("instance_id", CodeInvalidValue, "%s %s is not a recurrence instance", kind, instanceID)
		}
		return detach(ctx, s, kind, instanceID, e.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("detach instance %s: %w", instanceID, err)
	}
	e.emit(ctx, []Fact{{Type: FactInstanceDetached, EntityID: instanceID, Attrs: map[string]string{"kind": string(kind)}}})
	return nil
}

// liveInstances captures the instances a deletion must soft-delete: tasks
// that are neither completed nor deleted, and blocks that are not deleted
// and not in the past.
func liveInstances(ctx context.Context, s stores, rule model.RecurrenceRule, today string) ([]string, error) {
	switch rule.Kind {
	case model.KindTask:
		return s.tasks.ListLiveIDsByRecurrence(ctx, rule.ID, "")
	case model.KindTimeBlock:
		return s.blocks.ListLiveIDsByRecurrence(ctx, rule.ID, today)
	}
	return nil, fmt.Errorf("unknown kind %q", rule.Kind)
}

func clearRecurrence(ctx context.Context, s stores, kind model.Kind, recurrenceID string, now time.Time) error {
	var err error
	switch kind {
	case model.KindTask:
		_, err = s.tasks.ClearRecurrenceByRule(ctx, recurrenceID, now)
	case model.KindTimeBlock:
		_, err = s.blocks.ClearRecurrenceByRule(ctx, recurrenceID, now)
	}
	return err
}

func detach(ctx context.Context, s stores, kind model.Kind, instanceID string, now time.Time) error {
	if err := s.links.DeleteByInstance(ctx, instanceID); err != nil {
		return err
	}
	if kind == model.KindTask {
		return s.tasks.ClearRecurrence(ctx, instanceID, now)
	}
	return s.blocks.ClearRecurrence(ctx, instanceID, now)
}

// retireInstance soft-deletes one instance after dropping its associations.
// For tasks it returns the ids of blocks the orphan check removed.
func retireInstance(ctx context.Context, s stores, kind model.Kind, instanceID string, now time.Time) ([]string, error) {
	if kind == model.KindTimeBlock {
		if err := s.blockLinks.UnlinkBlock(ctx, instanceID); err != nil {
			return nil, err
		}
		return nil, s.blocks.SoftDelete(ctx, instanceID, now)
	}

	blockIDs, err := s.blockLinks.BlockIDsForTask(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.blockLinks.UnlinkTask(ctx, instanceID); err != nil {
		return nil, err
	}
	if err := s.tasks.DeleteSchedules(ctx, instanceID); err != nil {
		return nil, err
	}
	orphans, err := s.orphans().Resolve(ctx, blockIDs, now)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.SoftDelete(ctx, instanceID, now); err != nil {
		return nil, err
	}
	return orphans, nil
}

func orphanFacts(blockIDs []string, taskID string) []Fact {
	facts := make([]Fact, 0, len(blockIDs))
	for _, id := range blockIDs {
		facts = append(facts, Fact{Type: FactBlockOrphanDeleted, EntityID: id, Attrs: map[string]string{"task_id": taskID}})
	}
	return facts
}

func notFoundOnNoRows(err error, entity, id string) error {
	if errors.Is(err, store.ErrNoRowsAffected) {
		return notFound(entity, id)
	}
	return err
}
