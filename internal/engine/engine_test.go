package engine

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingEmitter struct {
	mu    sync.Mutex
	facts []Fact
}

func (r *recordingEmitter) Emit(_ context.Context, f Fact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = append(r.facts, f)
}

func (r *recordingEmitter) count(factType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.facts {
		if f.Type == factType {
			n++
		}
	}
	return n
}

type harness struct {
	engine  *Engine
	db      *sql.DB
	clock   *fixedClock
	emitter *recordingEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:      db,
		clock:   &fixedClock{now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)},
		emitter: &recordingEmitter{},
	}
	h.engine = New(db, Options{
		Clock:    h.clock,
		Emitter:  h.emitter,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location: time.UTC,
	})
	return h
}

func (h *harness) createRule(t *testing.T, in CreateRecurrenceInput) *model.RecurrenceRule {
	t.Helper()
	if in.Template.Title == "" {
		in.Template.Title = "Water plants"
	}
	rule, err := h.engine.CreateRecurrence(context.Background(), in)
	require.NoError(t, err)
	return rule
}

func (h *harness) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.QueryRow(query, args...).Scan(&n))
	return n
}

func (h *harness) task(t *testing.T, id string) *model.Task {
	t.Helper()
	task, err := store.NewTaskStore(h.db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task, "task %s", id)
	return task
}

func (h *harness) block(t *testing.T, id string) *model.TimeBlock {
	t.Helper()
	b, err := store.NewTimeBlockStore(h.db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b, "time block %s", id)
	return b
}

// createBlock inserts a block directly, the way the base calendar would.
func (h *harness) createBlock(t *testing.T, id, date string, source model.SourceType) {
	t.Helper()
	day, err := model.ParseDate(date)
	require.NoError(t, err)
	now := h.clock.Now()
	require.NoError(t, store.NewTimeBlockStore(h.db).Create(context.Background(), model.TimeBlock{
		ID:         id,
		StartTime:  day.Add(9 * time.Hour),
		EndTime:    day.Add(10 * time.Hour),
		TimeType:   model.TimeTypeFloating,
		SourceType: source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

// createTask inserts a plain task scheduled on date.
func (h *harness) createTask(t *testing.T, id, date string) {
	t.Helper()
	ts := store.NewTaskStore(h.db)
	now := h.clock.Now()
	require.NoError(t, ts.Create(context.Background(), model.Task{
		ID: id, Title: id, SourceType: model.SourceManual, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, ts.AddSchedule(context.Background(), id, date, now))
}
