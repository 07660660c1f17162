package engine

import (
	"context"
	"fmt"

	"github.com/dukerupert/cadence/internal/model"
)

// DeleteTask soft-deletes a task and removes the auto-created blocks it
// leaves orphaned. Deleting a recurrence instance records its date as
// excluded so the occurrence is not materialized again.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	var orphans []string
	err := e.write(ctx, func(s stores) error {
		t, err := liveTask(ctx, s, taskID)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		if t.RecurrenceID != nil && t.RecurrenceOriginalDate != nil {
			excl, err := t.WithExclusion(*t.RecurrenceOriginalDate)
			if err != nil {
				return err
			}
			if err := s.tasks.SetExclusions(ctx, taskID, &excl, now); err != nil {
				return err
			}
		}
		orphans, err = retireInstance(ctx, s, model.KindTask, taskID, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	e.emit(ctx, append([]Fact{{Type: FactTaskDeleted, EntityID: taskID}}, orphanFacts(orphans, taskID)...))
	return nil
}

// ArchiveTask archives a task. Its block associations are dropped and the
// same orphan check as deletion applies; schedules are kept as history.
func (e *Engine) ArchiveTask(ctx context.Context, taskID string) error {
	var orphans []string
	err := e.write(ctx, func(s stores) error {
		if _, err := liveTask(ctx, s, taskID); err != nil {
			return err
		}
		now := e.clock.Now()

		blockIDs, err := s.blockLinks.BlockIDsForTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.blockLinks.UnlinkTask(ctx, taskID); err != nil {
			return err
		}
		if orphans, err = s.orphans().Resolve(ctx, blockIDs, now); err != nil {
			return err
		}
		return s.tasks.Archive(ctx, taskID, now)
	})
	if err != nil {
		return fmt.Errorf("archive task %s: %w", taskID, err)
	}
	e.emit(ctx, append([]Fact{{Type: FactTaskArchived, EntityID: taskID}}, orphanFacts(orphans, taskID)...))
	return nil
}

func (e *Engine) CompleteTask(ctx context.Context, taskID string) error {
	err := e.write(ctx, func(s stores) error {
		return notFoundOnNoRows(s.tasks.Complete(ctx, taskID, e.clock.Now()), "task", taskID)
	})
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	e.emit(ctx, []Fact{{Type: FactTaskCompleted, EntityID: taskID}})
	return nil
}

// LinkTaskBlock associates a live task with a live time block.
func (e *Engine) LinkTaskBlock(ctx context.Context, taskID, blockID string) error {
	err := e.write(ctx, func(s stores) error {
		if _, err := liveTask(ctx, s, taskID); err != nil {
			return err
		}
		b, err := s.blocks.GetByID(ctx, blockID)
		if err != nil {
			return err
		}
		if b == nil || b.IsDeleted {
			return notFound("time block", blockID)
		}
		return s.blockLinks.Link(ctx, taskID, blockID, e.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("link task %s to block %s: %w", taskID, blockID, err)
	}
	return nil
}

func liveTask(ctx context.Context, s stores, id string) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.IsDeleted() {
		return nil, notFound("task", id)
	}
	return t, nil
}
