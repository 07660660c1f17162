package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// IDGenerator mints identifiers for new rows.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// UUIDGenerator returns random (v4) UUID strings.
func UUIDGenerator() IDGenerator { return uuidGenerator{} }

// Renderer fills {{variable}} placeholders in template text.
type Renderer interface {
	Render(text string, vars map[string]string) string
}

// PlaceholderRenderer substitutes {{name}} and {{ name }}. Unknown
// variables and unterminated braces are left as written.
type PlaceholderRenderer struct{}

func (PlaceholderRenderer) Render(text string, vars map[string]string) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	var b strings.Builder
	rest := text
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open + 2

		name := strings.TrimSpace(rest[open+2 : end])
		b.WriteString(rest[:open])
		if v, ok := vars[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String()
}

// occurrenceVars are the placeholders available to a materialized instance.
func occurrenceVars(day time.Time) map[string]string {
	return map[string]string{
		"date":          day.Format("2006-01-02"),
		"year":          day.Format("2006"),
		"month":         day.Format("01"),
		"day":           day.Format("02"),
		"month_name":    day.Format("January"),
		"month_short":   day.Format("Jan"),
		"weekday":       day.Format("Monday"),
		"weekday_short": day.Format("Mon"),
	}
}

// Coordinator serializes mutating units of work. Acquire blocks until the
// caller may write or ctx is done.
type Coordinator interface {
	Acquire(ctx context.Context) error
	Release()
}

// PermitCoordinator hands out a single process-wide write permit.
type PermitCoordinator struct {
	sem *semaphore.Weighted
}

func NewPermitCoordinator() *PermitCoordinator {
	return &PermitCoordinator{sem: semaphore.NewWeighted(1)}
}

func (c *PermitCoordinator) Acquire(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

func (c *PermitCoordinator) Release() {
	c.sem.Release(1)
}

// Fact names a domain event raised after a successful commit.
type Fact struct {
	Type     string
	EntityID string
	Attrs    map[string]string
}

const (
	FactRecurrenceCreated     = "recurrence.created"
	FactRecurrenceDeleted     = "recurrence.deleted"
	FactRecurrenceDeactivated = "recurrence.deactivated"
	FactRecurrenceReactivated = "recurrence.reactivated"
	FactRecurrenceResumed     = "recurrence.resumed"
	FactRecurrenceStopped     = "recurrence.stopped"
	FactTemplateUpdated       = "template.updated"
	FactInstanceMaterialized  = "instance.materialized"
	FactInstanceHealed        = "instance.healed"
	FactInstanceDetached      = "instance.detached"
	FactTaskDeleted           = "task.deleted"
	FactTaskArchived          = "task.archived"
	FactTaskCompleted         = "task.completed"
	FactBlockOrphanDeleted    = "time_block.orphan_deleted"
)

// Emitter receives domain facts. Delivery is the emitter's business.
type Emitter interface {
	Emit(ctx context.Context, f Fact)
}

// LogEmitter writes facts to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e LogEmitter) Emit(ctx context.Context, f Fact) {
	attrs := []any{"type", f.Type, "entity_id", f.EntityID}
	for k, v := range f.Attrs {
		attrs = append(attrs, k, v)
	}
	e.Logger.InfoContext(ctx, "domain fact", attrs...)
}
