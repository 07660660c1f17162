// Package scheduler pre-materializes an upcoming window of dates on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/cadence/internal/engine"
	"github.com/dukerupert/cadence/internal/model"
)

// Materializer is the part of the engine the scheduler drives.
type Materializer interface {
	MaterializeRange(ctx context.Context, kind model.Kind, from, to string) (map[string][]string, error)
	Today() string
}

type Scheduler struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	engine   Materializer
	schedule string
	horizon  int
	loc      *time.Location
	logger   *slog.Logger
	cron     *cron.Cron
	cancel   context.CancelFunc
}

// New validates schedule (standard five-field cron) and returns a stopped
// scheduler covering horizonDays starting today.
func New(m Materializer, schedule string, horizonDays int, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", schedule, err)
	}
	if horizonDays <= 0 {
		horizonDays = 1
	}
	if horizonDays > engine.MaxRangeDays {
		horizonDays = engine.MaxRangeDays
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   m,
		schedule: schedule,
		horizon:  horizonDays,
		loc:      loc,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Start schedules Tick and runs one immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.schedule, func() { s.Tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule materialization: %w", err)
	}

	s.mu.Lock()
	s.cron = c
	s.cancel = cancel
	s.mu.Unlock()

	c.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(ctx)
	}()
	s.logger.Info("scheduler started", "schedule", s.schedule, "horizon_days", s.horizon)
	return nil
}

// Stop cancels in-flight work and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

// Tick materializes both kinds over [today, today+horizon). Failures are
// logged; the next tick retries.
func (s *Scheduler) Tick(ctx context.Context) {
	today := s.engine.Today()
	start, err := time.Parse("2006-01-02", today)
	if err != nil {
		s.logger.Error("parse today", "today", today, "error", err)
		return
	}
	to := start.AddDate(0, 0, s.horizon-1).Format("2006-01-02")

	for _, kind := range []model.Kind{model.KindTask, model.KindTimeBlock} {
		if ctx.Err() != nil {
			return
		}
		got, err := s.engine.MaterializeRange(ctx, kind, today, to)
		if err != nil {
			s.logger.Error("materialize range", "kind", kind, "from", today, "to", to, "error", err)
		}
		n := 0
		for _, ids := range got {
			n += len(ids)
		}
		s.logger.Debug("materialized range", "kind", kind, "from", today, "to", to, "instances", n)
	}
}
