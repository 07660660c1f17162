package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestParseFreqOnly(t *testing.T) {
	tests := []struct {
		input string
		freq  string
	}{
		{"FREQ=DAILY", "DAILY"},
		{"FREQ=WEEKLY", "WEEKLY"},
		{"FREQ=MONTHLY", "MONTHLY"},
		{"FREQ=YEARLY", "YEARLY"},
		{"RRULE:FREQ=DAILY", "DAILY"},
	}

	for _, tt := range tests {
		r, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if r.Freq() != tt.freq {
			t.Errorf("Parse(%q).Freq() = %q, want %q", tt.input, r.Freq(), tt.freq)
		}
	}
}

func TestParseKeepsExpression(t *testing.T) {
	r, err := Parse("  RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR ")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if r.String() != "FREQ=WEEKLY;BYDAY=MO,WE,FR" {
		t.Errorf("String() = %q, want %q", r.String(), "FREQ=WEEKLY;BYDAY=MO,WE,FR")
	}
}

func TestParseUntilDate(t *testing.T) {
	r, err := Parse("FREQ=DAILY;UNTIL=20251231")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	got, ok := r.UntilDate()
	if !ok || got != "2025-12-31" {
		t.Errorf("UntilDate() = %q, %v, want %q, true", got, ok, "2025-12-31")
	}

	r = MustParse("FREQ=DAILY")
	if _, ok := r.UntilDate(); ok {
		t.Error("UntilDate() should be absent")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"BYDAY=MO", // no FREQ
		"FREQ=HOURLY",
		"FREQ=WEEKLY;INTERVAL=0",
		"FREQ=WEEKLY;BYDAY=XX",
		"FREQ=DAILY;COUNT=0",
		"FREQ=DAILY;UNKNOWN=1",
		"DTSTART:20250101\nRRULE:FREQ=DAILY",
	}

	for _, input := range tests {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) should error", input)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("   ")
	if !errors.Is(err, ErrEmptyRule) {
		t.Errorf("Parse(blank) error = %v, want ErrEmptyRule", err)
	}
}

// --- Matches / Expand tests ---

func d(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestMatchesDaily(t *testing.T) {
	rule := MustParse("FREQ=DAILY")
	anchor := d(2025, 1, 1)

	if !Matches(rule, anchor, d(2025, 1, 3)) {
		t.Error("daily rule should fire on Jan 3")
	}
	if Matches(rule, anchor, d(2024, 12, 31)) {
		t.Error("rule should not fire before its anchor")
	}
}

func TestMatchesIgnoresTimeOfDay(t *testing.T) {
	rule := MustParse("FREQ=DAILY")
	anchor := time.Date(2025, 1, 1, 17, 45, 0, 0, time.UTC)
	target := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)

	if !Matches(rule, anchor, target) {
		t.Error("date-level match should ignore clock time")
	}
}

func TestMatchesWeeklyByDay(t *testing.T) {
	rule := MustParse("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	anchor := d(2026, 2, 2) // Monday

	tests := []struct {
		day  int
		want bool
	}{
		{2, true},  // Mon
		{3, false}, // Tue
		{4, true},  // Wed
		{5, false}, // Thu
		{6, true},  // Fri
		{7, false}, // Sat
		{9, true},  // Mon
	}
	for _, tt := range tests {
		if got := Matches(rule, anchor, d(2026, 2, tt.day)); got != tt.want {
			t.Errorf("Matches(Feb %d) = %v, want %v", tt.day, got, tt.want)
		}
	}
}

func TestMatchesBiweekly(t *testing.T) {
	rule := MustParse("FREQ=WEEKLY;INTERVAL=2")
	anchor := d(2026, 2, 3) // Tuesday

	if !Matches(rule, anchor, d(2026, 2, 17)) {
		t.Error("biweekly rule should fire on Feb 17")
	}
	if Matches(rule, anchor, d(2026, 2, 10)) {
		t.Error("biweekly rule should not fire on Feb 10")
	}
}

func TestMatchesMonthly31st(t *testing.T) {
	rule := MustParse("FREQ=MONTHLY")
	anchor := d(2026, 1, 31)

	if Matches(rule, anchor, d(2026, 2, 28)) {
		t.Error("monthly-on-31st should skip February")
	}
	if !Matches(rule, anchor, d(2026, 3, 31)) {
		t.Error("monthly-on-31st should fire on Mar 31")
	}
}

func TestMatchesCountAndUntil(t *testing.T) {
	count := MustParse("FREQ=DAILY;COUNT=3")
	anchor := d(2025, 1, 1)
	if !Matches(count, anchor, d(2025, 1, 3)) {
		t.Error("COUNT=3 should include the third day")
	}
	if Matches(count, anchor, d(2025, 1, 4)) {
		t.Error("COUNT=3 should exclude the fourth day")
	}

	until := MustParse("FREQ=DAILY;UNTIL=20250105")
	if !Matches(until, anchor, d(2025, 1, 5)) {
		t.Error("UNTIL should be inclusive")
	}
	if Matches(until, anchor, d(2025, 1, 6)) {
		t.Error("rule should stop after UNTIL")
	}
}

func TestMatchesIsStable(t *testing.T) {
	rule := MustParse("FREQ=WEEKLY;BYDAY=TU,TH")
	anchor := d(2025, 1, 1)
	target := d(2025, 3, 13) // Thursday

	first := Matches(rule, anchor, target)
	for i := 0; i < 5; i++ {
		if got := Matches(rule, anchor, target); got != first {
			t.Fatalf("Matches changed answer on call %d: %v -> %v", i, first, got)
		}
	}
	if !first {
		t.Error("Thursday should match TU,TH")
	}
}

func TestMatchesScanCap(t *testing.T) {
	c := NewCalculator(10, nil)
	rule := MustParse("FREQ=DAILY")

	if !c.Matches(rule, d(2025, 1, 1), d(2025, 1, 5)) {
		t.Error("date within cap should match")
	}
	if c.Matches(rule, d(2025, 1, 1), d(2025, 3, 1)) {
		t.Error("date beyond cap should be reported as non-matching")
	}
}

func TestMatchesZeroRule(t *testing.T) {
	if Matches(Rule{}, d(2025, 1, 1), d(2025, 1, 1)) {
		t.Error("zero rule should never match")
	}
}

func TestExpandRange(t *testing.T) {
	c := NewCalculator(0, nil)
	rule := MustParse("FREQ=DAILY")

	dates, truncated := c.Expand(rule, d(2026, 1, 1), d(2026, 2, 5), d(2026, 2, 9))
	if truncated {
		t.Error("expansion should not be truncated")
	}
	if len(dates) != 5 {
		t.Fatalf("got %d dates, want 5 (Feb 5-9)", len(dates))
	}
	if dates[0].Day() != 5 || dates[4].Day() != 9 {
		t.Errorf("dates = %v..%v, want Feb 5..Feb 9", dates[0], dates[4])
	}
}

func TestExpandWeekly(t *testing.T) {
	c := NewCalculator(0, nil)
	rule := MustParse("FREQ=WEEKLY;BYDAY=TU,TH")

	dates, _ := c.Expand(rule, d(2026, 2, 3), d(2026, 2, 1), d(2026, 2, 14))
	expected := []int{3, 5, 10, 12}
	if len(dates) != len(expected) {
		t.Fatalf("got %d dates, want %d", len(dates), len(expected))
	}
	for i, day := range expected {
		if dates[i].Day() != day {
			t.Errorf("dates[%d] day = %d, want %d", i, dates[i].Day(), day)
		}
	}
}

func TestExpandRangeBeforeAnchor(t *testing.T) {
	c := NewCalculator(0, nil)
	dates, _ := c.Expand(MustParse("FREQ=DAILY"), d(2026, 3, 1), d(2026, 2, 1), d(2026, 2, 10))
	if len(dates) != 0 {
		t.Errorf("got %d dates, want 0", len(dates))
	}
}

func TestExpandTruncated(t *testing.T) {
	c := NewCalculator(3, nil)
	dates, truncated := c.Expand(MustParse("FREQ=DAILY"), d(2026, 1, 1), d(2026, 1, 1), d(2026, 1, 31))
	if !truncated {
		t.Error("expansion should report truncation")
	}
	if len(dates) != 3 {
		t.Errorf("got %d dates, want 3", len(dates))
	}
}
