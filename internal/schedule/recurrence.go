package schedule

import (
	"context"
	"fmt"
	"time"
)

// DueWindow is how long after its fire time a schedule stays due.
// It matches the scheduler's one-minute cadence.
const DueWindow = time.Minute

// IsDue reports whether next is set and now falls within DueWindow after it,
// inclusive at both ends.
func IsDue(next, now time.Time) bool {
	if next.IsZero() {
		return false
	}
	d := now.Sub(next)
	return d >= 0 && d <= DueWindow
}

// Calculator computes recurrences in the site's local time zone.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator for loc. A nil loc means time.Local.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{loc: loc}
}

// Location returns the calculator's time zone.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Next returns the fire time that follows from.
//
// Minute and hour add elapsed time. Day, month and year add calendar
// fields and day_of_week advances to the next day whose bit is set in the
// mask; for these four units the result is built from from's wall clock
// in the location, so the hour is kept across a daylight saving
// transition. A wall-clock time that falls in a spring-forward gap fires
// at the equivalent instant after the gap.
//
// ok is false when there is no next time: RepeatNone, a non-positive value
// or an empty weekday mask.
func (c *Calculator) Next(from time.Time, unit RepeatUnit, value int) (next time.Time, ok bool) {
	if value <= 0 {
		return time.Time{}, false
	}
	from = from.In(c.loc)

	switch unit {
	case RepeatMinute:
		return from.Add(time.Duration(value) * time.Minute), true
	case RepeatHour:
		return from.Add(time.Duration(value) * time.Hour), true
	}

	y, m, d := from.Date()
	wall := func(years, months, days int) time.Time {
		return time.Date(y+years, m+time.Month(months), d+days,
			from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), c.loc)
	}

	switch unit {
	case RepeatDay:
		return wall(0, 0, value), true
	case RepeatMonth:
		return wall(0, value, 0), true
	case RepeatYear:
		return wall(value, 0, 0), true
	case RepeatDayOfWeek:
		mask := value & 0x7f
		if mask == 0 {
			return time.Time{}, false
		}
		for i := 1; i <= 7; i++ {
			if mask&(1<<uint((from.Weekday()+time.Weekday(i))%7)) != 0 {
				return wall(0, 0, i), true
			}
		}
	}
	return time.Time{}, false
}

// Writer persists schedule changes made by UpdateSchedule.
type Writer interface {
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
}

// UpdateSchedule moves a schedule whose fire time has passed to its next
// occurrence strictly after now and persists the result.
//
// A schedule still pending (next time at or after now) is left alone. A
// one-shot schedule is deleted when RemoveAfterDone is set. Any other
// schedule with no next occurrence is disabled with its next time cleared.
//
// Returns whether the schedule was changed.
func (c *Calculator) UpdateSchedule(ctx context.Context, w Writer, s *Schedule, now time.Time) (bool, error) {
	if !s.NextTime.IsZero() && !s.NextTime.Before(now) {
		return false, nil
	}

	next, ok := c.advance(s, now)
	if ok {
		s.NextTime = next
		if err := w.UpdateSchedule(ctx, s); err != nil {
			return false, fmt.Errorf("rescheduling %d: %w", s.ID, err)
		}
		return true, nil
	}

	// Only a one-shot schedule is finished. A repeating one with no next
	// occurrence has bad repeat settings and is kept, disabled.
	if s.RemoveAfterDone && s.RepeatUnit == RepeatNone {
		if err := w.DeleteSchedule(ctx, s.ID); err != nil {
			return false, fmt.Errorf("removing finished schedule %d: %w", s.ID, err)
		}
		return true, nil
	}

	if !s.Enabled && s.NextTime.IsZero() {
		return false, nil
	}
	s.Enabled = false
	s.NextTime = time.Time{}
	if err := w.UpdateSchedule(ctx, s); err != nil {
		return false, fmt.Errorf("disabling finished schedule %d: %w", s.ID, err)
	}
	return true, nil
}

// advance iterates Next from the stored fire time until it passes now.
// An unset fire time on a repeating schedule is seeded from now.
func (c *Calculator) advance(s *Schedule, now time.Time) (time.Time, bool) {
	if s.RepeatUnit == RepeatNone {
		return time.Time{}, false
	}

	from := s.NextTime
	if from.IsZero() {
		from = now
	}

	// Elapsed-time units jump straight past now.
	var step time.Duration
	switch s.RepeatUnit {
	case RepeatMinute:
		step = time.Duration(s.RepeatValue) * time.Minute
	case RepeatHour:
		step = time.Duration(s.RepeatValue) * time.Hour
	}
	if step > 0 {
		if behind := now.Sub(from); behind >= 0 {
			from = from.Add(behind.Truncate(step))
		}
	}

	// Calendar units step from the stored time so a time skipped by a
	// daylight saving gap does not carry into later occurrences.
	anchored := s.RepeatUnit == RepeatDay || s.RepeatUnit == RepeatMonth || s.RepeatUnit == RepeatYear
	prev := from
	for k := 1; ; k++ {
		var next time.Time
		var ok bool
		if anchored {
			next, ok = c.Next(from, s.RepeatUnit, s.RepeatValue*k)
		} else {
			next, ok = c.Next(prev, s.RepeatUnit, s.RepeatValue)
		}
		if !ok {
			return time.Time{}, false
		}
		if next.After(now) {
			return next, true
		}
		prev = next
	}
}
