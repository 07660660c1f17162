package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cadence/internal/config"
	"github.com/dukerupert/cadence/internal/engine"
	"github.com/dukerupert/cadence/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// setupConfig writes a config pointing at a fresh database in a temp dir.
func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	require.NoError(t, config.Save(path, &config.Config{
		DBPath:   filepath.Join(dir, "cadence.db"),
		LogLevel: "error",
	}))
	return path
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "init must not overwrite without --force")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "materialize_cron")
	assert.Contains(t, out, "horizon_days: 14")
}

func TestCreateMaterializeAgenda(t *testing.T) {
	cfg := setupConfig(t)

	out, err := execute(t, "recurrence", "create", "--config", cfg, "--format", "json",
		"--kind", "task", "--rule", "FREQ=DAILY", "--start-date", "2030-01-01", "--title", "Stretch {{weekday}}")
	require.NoError(t, err)
	var rule model.RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(out), &rule))
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, model.KindTask, rule.Kind)

	out, err = execute(t, "materialize", "--config", cfg, "--format", "json",
		"--kind", "task", "--date", "2030-01-02")
	require.NoError(t, err)
	var first map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.Len(t, first["2030-01-02"], 1)

	out, err = execute(t, "materialize", "--config", cfg, "--format", "json",
		"--kind", "task", "--date", "2030-01-02")
	require.NoError(t, err)
	var second map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Equal(t, first, second)

	out, err = execute(t, "agenda", "--config", cfg, "--format", "json", "--date", "2030-01-02")
	require.NoError(t, err)
	var agenda engine.Agenda
	require.NoError(t, json.Unmarshal([]byte(out), &agenda))
	require.Len(t, agenda.Tasks, 1)
	assert.Equal(t, "Stretch Wednesday", agenda.Tasks[0].Title)
	assert.Equal(t, first["2030-01-02"][0], agenda.Tasks[0].ID)
}

func TestRecurrenceLifecycleCommands(t *testing.T) {
	cfg := setupConfig(t)

	out, err := execute(t, "recurrence", "create", "--config", cfg, "--format", "json",
		"--kind", "time_block", "--rule", "FREQ=WEEKLY", "--start-date", "2030-01-07",
		"--start-time", "07:30:00", "--duration", "45", "--title", "Run")
	require.NoError(t, err)
	var rule model.RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(out), &rule))

	_, err = execute(t, "recurrence", "deactivate", rule.ID, "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "recurrence", "show", rule.ID, "--config", cfg, "--format", "json")
	require.NoError(t, err)
	var shown model.RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.False(t, shown.IsActive)

	_, err = execute(t, "recurrence", "resume", rule.ID, "--config", cfg)
	assert.True(t, engine.IsValidation(err), "a paused rule is not stopped")

	_, err = execute(t, "recurrence", "reactivate", rule.ID, "--config", cfg)
	require.NoError(t, err)

	_, err = execute(t, "recurrence", "stop", rule.ID, "--config", cfg, "--date", "2030-02-01")
	require.NoError(t, err)
	_, err = execute(t, "recurrence", "resume", rule.ID, "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "recurrence", "list", "--config", cfg, "--kind", "time_block")
	require.NoError(t, err)
	assert.Contains(t, out, rule.ID)

	out, err = execute(t, "recurrence", "delete", rule.ID, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+rule.ID+"\n", out)

	out, err = execute(t, "recurrence", "list", "--config", cfg, "--kind", "time_block")
	require.NoError(t, err)
	assert.NotContains(t, out, rule.ID)

	_, err = execute(t, "recurrence", "show", rule.ID, "--config", cfg)
	assert.True(t, engine.IsNotFound(err))
}

func TestBadInput(t *testing.T) {
	cfg := setupConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"agenda", "--config", cfg, "--format", "xml"}},
		{"kind", []string{"materialize", "--config", cfg, "--kind", "event"}},
		{"date", []string{"materialize", "--config", cfg, "--date", "01/02/2030"}},
		{"rule", []string{"recurrence", "create", "--config", cfg, "--rule", "FREQ=SOMETIMES", "--title", "x"}},
		{"missing rule", []string{"recurrence", "create", "--config", cfg, "--title", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestTaskCommands(t *testing.T) {
	cfg := setupConfig(t)

	_, err := execute(t, "recurrence", "create", "--config", cfg,
		"--kind", "task", "--rule", "FREQ=DAILY", "--start-date", "2030-01-01", "--title", "Read")
	require.NoError(t, err)

	out, err := execute(t, "materialize", "--config", cfg, "--date", "2030-01-03")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	taskID := fields[1]

	out, err = execute(t, "task", "complete", taskID, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "completed "+taskID+"\n", out)

	_, err = execute(t, "task", "delete", "no-such-task", "--config", cfg)
	assert.True(t, engine.IsNotFound(err))
}

func TestAreaCommands(t *testing.T) {
	cfg := setupConfig(t)

	out, err := execute(t, "area", "create", "Garden", "--config", cfg, "--format", "json")
	require.NoError(t, err)
	var area model.Area
	require.NoError(t, json.Unmarshal([]byte(out), &area))

	_, err = execute(t, "recurrence", "create", "--config", cfg,
		"--rule", "FREQ=DAILY", "--title", "Weed", "--area", area.ID)
	require.NoError(t, err)

	out, err = execute(t, "area", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Garden")
}

func TestExportWritesCalendar(t *testing.T) {
	cfg := setupConfig(t)

	_, err := execute(t, "recurrence", "create", "--config", cfg,
		"--kind", "time_block", "--rule", "FREQ=DAILY", "--start-date", "2030-01-01",
		"--start-time", "06:00:00", "--title", "Swim")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.ics")
	_, err = execute(t, "export", "--config", cfg, "--from", "2030-01-01", "--to", "2030-01-02", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "BEGIN:VEVENT"))
	assert.Contains(t, string(data), "SUMMARY:Swim")
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := setupConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"run", "--config", cfg})
	assert.NoError(t, cmd.ExecuteContext(ctx))
}
