package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata" // DST tests need Europe/Paris on any host
)

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("loading Europe/Paris: %v", err)
	}
	return loc
}

func TestNext(t *testing.T) {
	loc := paris(t)
	at := func(y int, m time.Month, d, h, mi int) time.Time {
		return time.Date(y, m, d, h, mi, 0, 0, loc)
	}

	tests := []struct {
		name   string
		from   time.Time
		unit   RepeatUnit
		value  int
		want   time.Time
		wantOK bool
	}{
		{"day across spring forward", at(2026, 3, 28, 9, 0), RepeatDay, 1, at(2026, 3, 29, 9, 0), true},
		{"day across fall back", at(2026, 10, 24, 9, 0), RepeatDay, 1, at(2026, 10, 25, 9, 0), true},
		{"day into spring forward gap", at(2026, 3, 28, 2, 30), RepeatDay, 1, at(2026, 3, 29, 3, 30), true},
		{"days over spring forward gap", at(2026, 3, 28, 2, 30), RepeatDay, 2, at(2026, 3, 30, 2, 30), true},
		{"weekday into spring forward gap", at(2026, 3, 27, 2, 30), RepeatDayOfWeek, 1 << time.Sunday, at(2026, 3, 29, 3, 30), true},
		{"month keeps gap hour", at(2026, 2, 28, 2, 30), RepeatMonth, 1, at(2026, 3, 28, 2, 30), true},
		{"day without transition", at(2026, 6, 1, 7, 30), RepeatDay, 2, at(2026, 6, 3, 7, 30), true},
		{"minute is elapsed time", at(2026, 3, 29, 1, 30), RepeatMinute, 60, at(2026, 3, 29, 3, 30), true},
		{"hour is elapsed time", at(2026, 10, 25, 1, 0), RepeatHour, 2, time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC), true},
		{"weekday mask skips to monday", at(2026, 3, 27, 9, 0), RepeatDayOfWeek, 1 << time.Monday, at(2026, 3, 30, 9, 0), true},
		{"weekday mask next day", at(2026, 3, 27, 9, 0), RepeatDayOfWeek, 0x7f, at(2026, 3, 28, 9, 0), true},
		{"weekday same weekday is a week later", at(2026, 3, 27, 9, 0), RepeatDayOfWeek, 1 << time.Friday, at(2026, 4, 3, 9, 0), true},
		{"month across spring forward", at(2026, 1, 15, 9, 0), RepeatMonth, 3, at(2026, 4, 15, 9, 0), true},
		{"year", at(2026, 2, 10, 18, 0), RepeatYear, 1, at(2027, 2, 10, 18, 0), true},
		{"empty weekday mask", at(2026, 3, 27, 9, 0), RepeatDayOfWeek, 0, time.Time{}, false},
		{"zero value", at(2026, 3, 27, 9, 0), RepeatDay, 0, time.Time{}, false},
		{"none", at(2026, 3, 27, 9, 0), RepeatNone, 1, time.Time{}, false},
	}

	calc := NewCalculator(loc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := calc.Next(tt.from, tt.unit, tt.value)
			if ok != tt.wantOK {
				t.Fatalf("Next() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNext_KeepsWallClockHourInLocation(t *testing.T) {
	loc := paris(t)
	calc := NewCalculator(loc)

	// Stored times come back from the database in UTC.
	from := time.Date(2026, 3, 28, 9, 0, 0, 0, loc).UTC()
	got, ok := calc.Next(from, RepeatDay, 1)
	if !ok {
		t.Fatal("Next() ok = false")
	}
	if local := got.In(loc); local.Hour() != 9 || local.Day() != 29 {
		t.Errorf("Next() = %s, want 09:00 on the 29th", local)
	}
}

func TestIsDue(t *testing.T) {
	next := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		next time.Time
		now  time.Time
		want bool
	}{
		{"exact", next, next, true},
		{"45s late", next, next.Add(45 * time.Second), true},
		{"60s late", next, next.Add(60 * time.Second), true},
		{"61s late", next, next.Add(61 * time.Second), false},
		{"early", next, next.Add(-time.Second), false},
		{"unset", time.Time{}, next, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(tt.next, tt.now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// memWriter records UpdateSchedule/DeleteSchedule calls.
type memWriter struct {
	updated []Schedule
	deleted []int64
	err     error
}

func (m *memWriter) UpdateSchedule(_ context.Context, s *Schedule) error {
	if m.err != nil {
		return m.err
	}
	m.updated = append(m.updated, *s)
	return nil
}

func (m *memWriter) DeleteSchedule(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func TestUpdateSchedule(t *testing.T) {
	loc := paris(t)
	calc := NewCalculator(loc)
	ctx := context.Background()
	now := time.Date(2026, 3, 30, 12, 0, 0, 0, loc)

	t.Run("pending is a no-op", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: now.Add(time.Minute), RepeatUnit: RepeatDay, RepeatValue: 1, Enabled: true}
		changed, err := calc.UpdateSchedule(ctx, w, s, now)
		if err != nil || changed || len(w.updated) != 0 {
			t.Errorf("UpdateSchedule() = %v, %v; updates %d", changed, err, len(w.updated))
		}
	})

	t.Run("next equal to now is pending", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: now, RepeatUnit: RepeatDay, RepeatValue: 1, Enabled: true}
		if changed, _ := calc.UpdateSchedule(ctx, w, s, now); changed {
			t.Error("UpdateSchedule() changed a schedule due exactly now")
		}
	})

	t.Run("missed daily catches up past now", func(t *testing.T) {
		w := &memWriter{}
		// Three days behind, across the 29 March transition.
		s := &Schedule{ID: 1, NextTime: time.Date(2026, 3, 27, 9, 0, 0, 0, loc), RepeatUnit: RepeatDay, RepeatValue: 1, Enabled: true}
		changed, err := calc.UpdateSchedule(ctx, w, s, now)
		if err != nil || !changed {
			t.Fatalf("UpdateSchedule() = %v, %v", changed, err)
		}
		want := time.Date(2026, 3, 31, 9, 0, 0, 0, loc)
		if !s.NextTime.Equal(want) || len(w.updated) != 1 {
			t.Errorf("NextTime = %s, want %s", s.NextTime.In(loc), want)
		}
	})

	t.Run("minute repeat jumps straight past now", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: now.Add(-10*time.Minute - 30*time.Second), RepeatUnit: RepeatMinute, RepeatValue: 5, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if want := now.Add(4*time.Minute + 30*time.Second); !s.NextTime.Equal(want) {
			t.Errorf("NextTime = %s, want %s", s.NextTime, want)
		}
	})

	t.Run("unset repeating time is seeded from now", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, RepeatUnit: RepeatHour, RepeatValue: 1, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if want := now.Add(time.Hour); !s.NextTime.Equal(want) {
			t.Errorf("NextTime = %s, want %s", s.NextTime, want)
		}
	})

	t.Run("fired once is disabled", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: now.Add(-time.Minute), RepeatUnit: RepeatNone, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if s.Enabled || !s.NextTime.IsZero() || len(w.updated) != 1 || len(w.deleted) != 0 {
			t.Errorf("schedule = %+v, updates %d, deletes %d", s, len(w.updated), len(w.deleted))
		}
	})

	t.Run("fired once with remove after done is deleted", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 7, NextTime: now.Add(-time.Minute), RepeatUnit: RepeatNone, RemoveAfterDone: true, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if len(w.deleted) != 1 || w.deleted[0] != 7 || len(w.updated) != 0 {
			t.Errorf("deletes = %v, updates %d", w.deleted, len(w.updated))
		}
	})

	t.Run("empty weekday mask is disabled", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: now.Add(-time.Minute), RepeatUnit: RepeatDayOfWeek, RepeatValue: 0, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if s.Enabled {
			t.Error("schedule with empty mask left enabled")
		}
	})

	t.Run("bad repeat with remove after done is disabled not deleted", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 8, NextTime: now.Add(-time.Minute), RepeatUnit: RepeatDayOfWeek, RepeatValue: 0, RemoveAfterDone: true, Enabled: true}
		changed, err := calc.UpdateSchedule(ctx, w, s, now)
		if err != nil || !changed {
			t.Fatalf("UpdateSchedule() = %v, %v", changed, err)
		}
		if s.Enabled || !s.NextTime.IsZero() || len(w.updated) != 1 || len(w.deleted) != 0 {
			t.Errorf("schedule = %+v, updates %d, deletes %v", s, len(w.updated), w.deleted)
		}
	})

	t.Run("catch up across spring forward keeps the gap hour", func(t *testing.T) {
		w := &memWriter{}
		s := &Schedule{ID: 1, NextTime: time.Date(2026, 3, 27, 2, 30, 0, 0, loc), RepeatUnit: RepeatDay, RepeatValue: 1, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err != nil {
			t.Fatalf("UpdateSchedule() error = %v", err)
		}
		if want := time.Date(2026, 3, 31, 2, 30, 0, 0, loc); !s.NextTime.Equal(want) {
			t.Errorf("NextTime = %s, want %s", s.NextTime.In(loc), want)
		}
	})

	t.Run("write failure is reported", func(t *testing.T) {
		w := &memWriter{err: errors.New("locked")}
		s := &Schedule{ID: 1, NextTime: now.Add(-time.Minute), RepeatUnit: RepeatDay, RepeatValue: 1, Enabled: true}
		if _, err := calc.UpdateSchedule(ctx, w, s, now); err == nil {
			t.Error("UpdateSchedule() write failure = nil error")
		}
	})
}
