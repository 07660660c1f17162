package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cadence/internal/model"
)

func TestCreateAndListAreas(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.CreateArea(ctx, "  ", "")
	assert.True(t, IsValidation(err))

	home, err := h.engine.CreateArea(ctx, " Home ", "#00ff00")
	require.NoError(t, err)
	assert.Equal(t, "Home", home.Name)
	_, err = h.engine.CreateArea(ctx, "Garden", "")
	require.NoError(t, err)

	areas, err := h.engine.ListAreas(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "Garden", areas[0].Name)
	assert.Equal(t, "Home", areas[1].Name)
}

func TestTemplateAreaFlowsToInstances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	area, err := h.engine.CreateArea(ctx, "Garden", "")
	require.NoError(t, err)

	rule := h.createRule(t, CreateRecurrenceInput{
		Kind:     model.KindTask,
		Rule:     "FREQ=DAILY",
		Template: TemplateFields{Title: "Weed", AreaID: &area.ID},
	})
	ids, err := h.engine.EnsureMaterialized(ctx, model.KindTask, "2025-01-11")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	task := h.task(t, ids[0])
	require.NotNil(t, task.AreaID)
	assert.Equal(t, area.ID, *task.AreaID)

	missing := "nowhere"
	_, err = h.engine.UpdateTemplate(ctx, rule.TemplateID, TemplateFields{Title: "Weed", AreaID: &missing})
	assert.True(t, IsNotFound(err))
}

func TestCreateRecurrenceUnknownArea(t *testing.T) {
	h := newHarness(t)
	missing := "nowhere"

	_, err := h.engine.CreateRecurrence(context.Background(), CreateRecurrenceInput{
		Kind:     model.KindTask,
		Rule:     "FREQ=DAILY",
		Template: TemplateFields{Title: "Weed", AreaID: &missing},
	})
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, h.count(t, `SELECT COUNT(*) FROM recurrence_rules`))
	assert.Equal(t, 0, h.count(t, `SELECT COUNT(*) FROM instance_templates`))
}
