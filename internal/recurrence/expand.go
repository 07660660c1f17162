package recurrence

import (
	"log/slog"
	"time"
)

// DefaultMaxScan caps how many occurrences are generated while looking for a
// date. Daily rules reach roughly 136 years before hitting it.
const DefaultMaxScan = 50000

// Calculator answers occurrence questions for parsed rules.
type Calculator struct {
	MaxScan int
	Logger  *slog.Logger
}

func NewCalculator(maxScan int, logger *slog.Logger) *Calculator {
	if maxScan <= 0 {
		maxScan = DefaultMaxScan
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{MaxScan: maxScan, Logger: logger}
}

// Matches reports whether the rule, expanded from anchor, fires on target.
// Only the calendar dates of anchor and target are considered. The result
// depends on nothing but its arguments.
func (c *Calculator) Matches(rule Rule, anchor, target time.Time) bool {
	if rule.IsZero() {
		return false
	}
	anchor = dateOf(anchor)
	target = dateOf(target)
	if target.Before(anchor) {
		return false
	}

	rr, err := rule.build(anchor)
	if err != nil {
		c.Logger.Error("build recurrence rule", "rule", rule.String(), "error", err)
		return false
	}

	next := rr.Iterator()
	for count := 0; count < c.MaxScan; count++ {
		occ, ok := next()
		if !ok {
			return false
		}
		d := dateOf(occ)
		if d.Equal(target) {
			return true
		}
		if d.After(target) {
			return false
		}
	}

	c.Logger.Warn("recurrence scan cap reached", "rule", rule.String(), "anchor", anchor.Format("2006-01-02"), "target", target.Format("2006-01-02"), "cap", c.MaxScan)
	return false
}

// Expand returns every occurrence date of the rule within [from, to]
// (inclusive, calendar dates). The second result reports whether the scan
// cap cut the expansion short.
func (c *Calculator) Expand(rule Rule, anchor, from, to time.Time) ([]time.Time, bool) {
	if rule.IsZero() {
		return nil, false
	}
	anchor = dateOf(anchor)
	from = dateOf(from)
	to = dateOf(to)
	if to.Before(from) || to.Before(anchor) {
		return nil, false
	}

	rr, err := rule.build(anchor)
	if err != nil {
		c.Logger.Error("build recurrence rule", "rule", rule.String(), "error", err)
		return nil, false
	}

	var dates []time.Time
	next := rr.Iterator()
	for count := 0; count < c.MaxScan; count++ {
		occ, ok := next()
		if !ok {
			return dates, false
		}
		d := dateOf(occ)
		if d.After(to) {
			return dates, false
		}
		if !d.Before(from) {
			dates = append(dates, d)
		}
	}
	return dates, true
}

var defaultCalculator = NewCalculator(DefaultMaxScan, nil)

// Matches uses a calculator with the default scan cap.
func Matches(rule Rule, anchor, target time.Time) bool {
	return defaultCalculator.Matches(rule, anchor, target)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
