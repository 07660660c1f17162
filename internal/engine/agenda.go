package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

// Agenda is the forward-looking view of one calendar date.
type Agenda struct {
	Date       string            `json:"date"`
	Today      string            `json:"today"`
	Tasks      []model.Task      `json:"tasks"`
	TimeBlocks []model.TimeBlock `json:"time_blocks"`
}

// Agenda materializes both kinds for date and then reads what is visible on
// it. Instances of EXPIRE rules dated before today are filtered out at read
// time. Materialization failures are returned alongside the agenda.
func (e *Engine) Agenda(ctx context.Context, date string) (*Agenda, error) {
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, invalid("date", CodeInvalidDate, "date must be YYYY-MM-DD, got %q", date)
	}
	date = model.FormatDate(day)

	var errs []error
	for _, kind := range []model.Kind{model.KindTask, model.KindTimeBlock} {
		if _, err := e.EnsureMaterialized(ctx, kind, date); err != nil {
			errs = append(errs, err)
		}
	}

	today := e.Today()
	tasks, err := e.stores.tasks.ListForDate(ctx, date, today)
	if err != nil {
		return nil, fmt.Errorf("agenda tasks: %w", err)
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, e.loc)
	blocks, err := e.stores.blocks.ListForRange(ctx, start, end, today)
	if err != nil {
		return nil, fmt.Errorf("agenda time blocks: %w", err)
	}

	return &Agenda{Date: date, Today: today, Tasks: tasks, TimeBlocks: blocks}, errors.Join(errs...)
}

// TimeBlocks materializes time-block rules over [from, to] and returns the
// visible blocks overlapping that span. Materialization failures are
// returned alongside the blocks.
func (e *Engine) TimeBlocks(ctx context.Context, from, to string) ([]model.TimeBlock, error) {
	byDate, err := e.MaterializeRange(ctx, model.KindTimeBlock, from, to)
	if byDate == nil {
		return nil, err
	}

	first, _ := model.ParseDate(from)
	last, _ := model.ParseDate(to)
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, e.loc)
	end := time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, e.loc)

	blocks, lerr := e.stores.blocks.ListForRange(ctx, start, end, e.Today())
	if lerr != nil {
		return nil, fmt.Errorf("list time blocks: %w", lerr)
	}
	return blocks, err
}
