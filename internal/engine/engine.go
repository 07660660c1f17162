// Package engine materializes recurrence rules into concrete tasks and time
// blocks and cascades rule lifecycle changes across everything they produced.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/cadence/internal/orphan"
	"github.com/dukerupert/cadence/internal/recurrence"
	"github.com/dukerupert/cadence/internal/store"
)

// Options wires the engine's collaborators. Zero fields get defaults.
type Options struct {
	Clock       Clock
	IDs         IDGenerator
	Renderer    Renderer
	Coordinator Coordinator
	Emitter     Emitter
	Logger      *slog.Logger

	// Location is the ambient zone for FLOATING rules and for "today".
	Location *time.Location

	// MaxScan caps occurrence generation per match.
	MaxScan int
}

type Engine struct {
	db       *sql.DB
	stores   stores
	calc     *recurrence.Calculator
	clock    Clock
	ids      IDGenerator
	renderer Renderer
	coord    Coordinator
	emitter  Emitter
	logger   *slog.Logger
	loc      *time.Location
}

// stores groups every store the engine touches so a transaction can rebind
// them together.
type stores struct {
	areas      *store.AreaStore
	rules      *store.RuleStore
	templates  *store.TemplateStore
	links      *store.LinkStore
	tasks      *store.TaskStore
	blocks     *store.TimeBlockStore
	blockLinks *store.BlockLinkStore
}

func newStores(db store.DBTX) stores {
	return stores{
		areas:      store.NewAreaStore(db),
		rules:      store.NewRuleStore(db),
		templates:  store.NewTemplateStore(db),
		links:      store.NewLinkStore(db),
		tasks:      store.NewTaskStore(db),
		blocks:     store.NewTimeBlockStore(db),
		blockLinks: store.NewBlockLinkStore(db),
	}
}

func (s stores) withTx(tx *sql.Tx) stores {
	return stores{
		areas:      s.areas.WithTx(tx),
		rules:      s.rules.WithTx(tx),
		templates:  s.templates.WithTx(tx),
		links:      s.links.WithTx(tx),
		tasks:      s.tasks.WithTx(tx),
		blocks:     s.blocks.WithTx(tx),
		blockLinks: s.blockLinks.WithTx(tx),
	}
}

func (s stores) orphans() *orphan.Resolver {
	return orphan.NewResolver(s.blocks, s.blockLinks)
}

func New(db *sql.DB, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator()
	}
	if opts.Renderer == nil {
		opts.Renderer = PlaceholderRenderer{}
	}
	if opts.Coordinator == nil {
		opts.Coordinator = NewPermitCoordinator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = LogEmitter{Logger: opts.Logger}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger.With("component", "engine")

	return &Engine{
		db:       db,
		stores:   newStores(db),
		calc:     recurrence.NewCalculator(opts.MaxScan, logger),
		clock:    opts.Clock,
		ids:      opts.IDs,
		renderer: opts.Renderer,
		coord:    opts.Coordinator,
		emitter:  opts.Emitter,
		logger:   logger,
		loc:      opts.Location,
	}
}

// Today is the current calendar date in the engine's ambient zone.
func (e *Engine) Today() string {
	return e.clock.Now().In(e.loc).Format("2006-01-02")
}

// write runs fn inside one transaction while holding the write permit.
// Nothing inside fn may use the engine's non-transactional stores: the pool
// has a single connection and the transaction owns it.
func (e *Engine) write(ctx context.Context, fn func(s stores) error) error {
	if err := e.coord.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire write permit: %w", err)
	}
	defer e.coord.Release()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(e.stores.withTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, facts []Fact) {
	for _, f := range facts {
		e.emitter.Emit(ctx, f)
	}
}
