package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var freqNames = map[rrule.Frequency]string{
	rrule.DAILY:   "DAILY",
	rrule.WEEKLY:  "WEEKLY",
	rrule.MONTHLY: "MONTHLY",
	rrule.YEARLY:  "YEARLY",
}

// Rule is a validated RRULE expression. It is parsed once and carried in
// parsed form next to the raw string.
type Rule struct {
	expr string
	opt  rrule.ROption
}

var (
	ErrEmptyRule       = errors.New("empty rule")
	ErrUnsupportedFreq = errors.New("frequency finer than daily is not supported")
)

// Parse parses an RRULE string like "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2".
// A leading "RRULE:" prefix is accepted. DTSTART is not part of the
// expression; the anchor date is supplied at match time.
func Parse(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "RRULE:")
	if expr == "" {
		return Rule{}, ErrEmptyRule
	}
	if strings.Contains(strings.ToUpper(expr), "DTSTART") {
		return Rule{}, fmt.Errorf("DTSTART is not allowed in rule: %q", expr)
	}

	opt, err := rrule.StrToROption(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rule %q: %w", expr, err)
	}

	if _, ok := freqNames[opt.Freq]; !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedFreq, expr)
	}
	hasFreq := false
	for _, part := range strings.Split(expr, ";") {
		key, val, _ := strings.Cut(part, "=")
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			hasFreq = true
		case "INTERVAL", "COUNT":
			if n, err := strconv.Atoi(val); err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid %s in rule %q", key, expr)
			}
		}
	}
	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required: %q", expr)
	}

	// Option-level errors (BYSETPOS ranges and the like) only surface from NewRRule.
	trial := *opt
	trial.Dtstart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := rrule.NewRRule(trial); err != nil {
		return Rule{}, fmt.Errorf("build rule %q: %w", expr, err)
	}

	return Rule{expr: expr, opt: *opt}, nil
}

// MustParse is Parse for rule literals known to be valid.
func MustParse(expr string) Rule {
	r, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the expression the rule was parsed from.
func (r Rule) String() string {
	return r.expr
}

func (r Rule) IsZero() bool {
	return r.expr == ""
}

// Freq returns the rule frequency name (DAILY, WEEKLY, MONTHLY, YEARLY).
func (r Rule) Freq() string {
	return freqNames[r.opt.Freq]
}

// UntilDate returns the UNTIL component as YYYY-MM-DD, if present.
func (r Rule) UntilDate() (string, bool) {
	if r.opt.Until.IsZero() {
		return "", false
	}
	return r.opt.Until.UTC().Format("2006-01-02"), true
}

// build anchors the rule at the given calendar date.
func (r Rule) build(anchor time.Time) (*rrule.RRule, error) {
	opt := r.opt
	y, m, d := anchor.Date()
	opt.Dtstart = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return rrule.NewRRule(opt)
}
