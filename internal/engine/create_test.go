package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

func TestCreateRecurrenceValidation(t *testing.T) {
	valid := func() CreateRecurrenceInput {
		return CreateRecurrenceInput{
			Kind:      model.KindTask,
			Rule:      "FREQ=DAILY",
			StartDate: model.StringPtr("2025-01-01"),
			Template:  TemplateFields{Title: "Stretch"},
		}
	}

	tests := []struct {
		name   string
		mutate func(in *CreateRecurrenceInput)
		field  string
		code   string
	}{
		{"unknown kind", func(in *CreateRecurrenceInput) { in.Kind = "event" }, "kind", CodeInvalidValue},
		{"malformed rule", func(in *CreateRecurrenceInput) { in.Rule = "FREQ=SOMETIMES" }, "rule", CodeInvalidRule},
		{"hourly rule", func(in *CreateRecurrenceInput) { in.Rule = "FREQ=HOURLY" }, "rule", CodeInvalidRule},
		{"end before start", func(in *CreateRecurrenceInput) { in.EndDate = model.StringPtr("2024-12-31") }, "end_date", CodeInvalidDateRange},
		{"bad start date", func(in *CreateRecurrenceInput) { in.StartDate = model.StringPtr("2025-13-01") }, "start_date", CodeInvalidDate},
		{"until disagrees with end", func(in *CreateRecurrenceInput) {
			in.Rule = "FREQ=DAILY;UNTIL=20250131"
			in.EndDate = model.StringPtr("2025-02-28")
		}, "end_date", CodeUntilMismatch},
		{"seed without start date", func(in *CreateRecurrenceInput) {
			in.StartDate = nil
			in.SeedInstanceID = model.StringPtr("t1")
		}, "start_date", CodeRequired},
		{"bad start time", func(in *CreateRecurrenceInput) { in.Template.StartTimeLocal = "9am" }, "start_time_local", CodeInvalidTime},
		{"short start time", func(in *CreateRecurrenceInput) { in.Template.StartTimeLocal = "9:00:00" }, "start_time_local", CodeInvalidTime},
		{"missing title", func(in *CreateRecurrenceInput) { in.Template.Title = "  " }, "title", CodeRequired},
		{"unknown timezone", func(in *CreateRecurrenceInput) { in.Timezone = model.StringPtr("Mars/Olympus") }, "timezone", CodeInvalidValue},
		{"unknown expiry", func(in *CreateRecurrenceInput) { in.ExpiryBehavior = "VANISH" }, "expiry_behavior", CodeInvalidValue},
		{"zero duration", func(in *CreateRecurrenceInput) { in.Template.DurationMinutes = model.IntPtr(0) }, "duration_minutes", CodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := valid()
			tt.mutate(&in)

			_, err := h.engine.CreateRecurrence(context.Background(), in)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.code, ve.Code)
			assert.Equal(t, 0, h.count(t, `SELECT COUNT(*) FROM recurrence_rules`))
		})
	}
}

func TestCreateRecurrenceStoresRuleAndTemplate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rule := h.createRule(t, CreateRecurrenceInput{
		Kind:      model.KindTask,
		Rule:      "RRULE:FREQ=DAILY;UNTIL=20250131",
		StartDate: model.StringPtr("2025-01-01"),
		EndDate:   model.StringPtr("2025-01-31"),
	})
	assert.Equal(t, "FREQ=DAILY;UNTIL=20250131", rule.Rule)
	assert.Equal(t, model.TimeTypeFloating, rule.TimeType)
	assert.Equal(t, model.ExpiryCarryover, rule.ExpiryBehavior)
	assert.True(t, rule.IsActive)

	got, err := h.engine.GetRecurrence(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.TemplateID, got.TemplateID)
	assert.False(t, got.Parsed.IsZero())

	tpl, err := store.NewTemplateStore(h.db).GetByID(ctx, rule.TemplateID)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, DefaultStartTimeLocal, tpl.StartTimeLocal)
	assert.Equal(t, 1, h.emitter.count(FactRecurrenceCreated))

	_, err = h.engine.GetRecurrence(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestCreateRecurrenceWithSeedTimeBlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createBlock(t, "seed", "2025-02-01", model.SourceManual)

	rule := h.createRule(t, CreateRecurrenceInput{
		Kind:           model.KindTimeBlock,
		Rule:           "FREQ=WEEKLY",
		StartDate:      model.StringPtr("2025-02-01"),
		SeedInstanceID: model.StringPtr("seed"),
	})

	ids, err := h.engine.EnsureMaterialized(ctx, model.KindTimeBlock, "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, ids)
	assert.Equal(t, 1, h.count(t, `SELECT COUNT(*) FROM time_blocks`))

	seed := h.block(t, "seed")
	require.NotNil(t, seed.RecurrenceOriginalDate)
	assert.Equal(t, "2025-02-01", *seed.RecurrenceOriginalDate)
	require.NotNil(t, seed.RecurrenceID)
	assert.Equal(t, rule.ID, *seed.RecurrenceID)

	link, err := store.NewLinkStore(h.db).Find(ctx, rule.ID, "2025-02-01")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "seed", link.InstanceID)
}

func TestCreateRecurrenceWithSeedTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTask(t, "seed", "2025-01-06")

	rule := h.createRule(t, CreateRecurrenceInput{
		Kind:           model.KindTask,
		Rule:           "FREQ=WEEKLY;BYDAY=MO",
		StartDate:      model.StringPtr("2025-01-06"),
		SeedInstanceID: model.StringPtr("seed"),
	})

	ids, err := h.engine.EnsureMaterialized(ctx, model.KindTask, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, ids)

	seed := h.task(t, "seed")
	require.NotNil(t, seed.RecurrenceID)
	assert.Equal(t, rule.ID, *seed.RecurrenceID)
	assert.Equal(t, model.SourceManual, seed.SourceType)

	// The next week is generated normally.
	ids, err = h.engine.EnsureMaterialized(ctx, model.KindTask, "2025-01-13")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEqual(t, "seed", ids[0])
}

func TestCreateRecurrenceSeedChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTask(t, "wrong-day", "2025-01-07")

	_, err := h.engine.CreateRecurrence(ctx, CreateRecurrenceInput{
		Kind:           model.KindTask,
		Rule:           "FREQ=DAILY",
		StartDate:      model.StringPtr("2025-01-06"),
		SeedInstanceID: model.StringPtr("wrong-day"),
		Template:       TemplateFields{Title: "x"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeSeedDateMismatch, ve.Code)

	_, err = h.engine.CreateRecurrence(ctx, CreateRecurrenceInput{
		Kind:           model.KindTask,
		Rule:           "FREQ=DAILY",
		StartDate:      model.StringPtr("2025-01-06"),
		SeedInstanceID: model.StringPtr("nope"),
		Template:       TemplateFields{Title: "x"},
	})
	assert.True(t, IsNotFound(err))

	// Nothing from the failed attempts survives.
	assert.Equal(t, 0, h.count(t, `SELECT COUNT(*) FROM recurrence_rules`))
	assert.Equal(t, 0, h.count(t, `SELECT COUNT(*) FROM instance_templates`))
	assert.Nil(t, h.task(t, "wrong-day").RecurrenceID)
}

func TestCreateRecurrenceSeedBlockDayInRuleZone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.Now()
	// 03:00 UTC on Feb 2 is still Feb 1 in New York.
	start := time.Date(2025, 2, 2, 3, 0, 0, 0, time.UTC)
	for _, id := range []string{"evening", "floating"} {
		require.NoError(t, store.NewTimeBlockStore(h.db).Create(ctx, model.TimeBlock{
			ID: id, StartTime: start, EndTime: start.Add(time.Hour),
			TimeType: model.TimeTypeFixed, SourceType: model.SourceManual,
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	rule := h.createRule(t, CreateRecurrenceInput{
		Kind:           model.KindTimeBlock,
		Rule:           "FREQ=WEEKLY",
		TimeType:       model.TimeTypeFixed,
		Timezone:       model.StringPtr("America/New_York"),
		StartDate:      model.StringPtr("2025-02-01"),
		SeedInstanceID: model.StringPtr("evening"),
	})
	require.NotNil(t, h.block(t, "evening").RecurrenceID)
	assert.Equal(t, rule.ID, *h.block(t, "evening").RecurrenceID)

	// In the ambient zone (UTC) the same instant falls on Feb 2.
	_, err := h.engine.CreateRecurrence(ctx, CreateRecurrenceInput{
		Kind:           model.KindTimeBlock,
		Rule:           "FREQ=WEEKLY",
		StartDate:      model.StringPtr("2025-02-01"),
		SeedInstanceID: model.StringPtr("floating"),
		Template:       TemplateFields{Title: "x"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeSeedDateMismatch, ve.Code)
	assert.Nil(t, h.block(t, "floating").RecurrenceID)
}
