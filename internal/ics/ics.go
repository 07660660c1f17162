// Package ics renders time blocks as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/cadence/internal/model"
)

const productID = "-//cadence//time blocks//EN"

// Write serializes blocks as VEVENTs. All-day blocks become DATE values in
// loc; the rest are written in UTC.
func Write(w io.Writer, blocks []model.TimeBlock, loc *time.Location, stamp time.Time) error {
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, b := range blocks {
		ev := cal.AddEvent(b.ID)
		ev.SetDtStampTime(stamp)
		if b.IsAllDay {
			ev.SetAllDayStartAt(b.StartTime.In(loc))
			ev.SetAllDayEndAt(b.EndTime.In(loc))
		} else {
			ev.SetStartAt(b.StartTime)
			ev.SetEndAt(b.EndTime)
		}
		ev.SetSummary(summary(b))
		if b.GlanceNote != nil {
			ev.SetDescription(*b.GlanceNote)
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func summary(b model.TimeBlock) string {
	if b.Title != nil && *b.Title != "" {
		return *b.Title
	}
	return "Time block"
}
