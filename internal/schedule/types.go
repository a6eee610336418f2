package schedule

import (
	"fmt"
	"strings"
	"time"
)

// RepeatUnit says how a schedule recurs after it fires.
type RepeatUnit string

const (
	RepeatNone   RepeatUnit = "none"
	RepeatMinute RepeatUnit = "minute"
	RepeatHour   RepeatUnit = "hour"
	RepeatDay    RepeatUnit = "day"

	// RepeatDayOfWeek reads RepeatValue as a 7-bit weekday mask,
	// bit n set for time.Weekday(n). Sunday is bit 0.
	RepeatDayOfWeek RepeatUnit = "day_of_week"

	RepeatMonth RepeatUnit = "month"
	RepeatYear  RepeatUnit = "year"
)

// AllRepeatUnits returns every valid repeat unit.
func AllRepeatUnits() []RepeatUnit {
	return []RepeatUnit{RepeatNone, RepeatMinute, RepeatHour, RepeatDay, RepeatDayOfWeek, RepeatMonth, RepeatYear}
}

// Schedule fires a script at NextTime and optionally recurs.
type Schedule struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ScriptID int64  `json:"script_id"`

	// NextTime is the zero time when unset.
	NextTime time.Time `json:"next_time"`

	RepeatUnit  RepeatUnit `json:"repeat_unit"`
	RepeatValue int        `json:"repeat_value"`

	// RemoveAfterDone deletes a non-repeating schedule once it has fired
	// instead of disabling it.
	RemoveAfterDone bool `json:"remove_after_done"`
	Enabled         bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const maxNameLength = 100

// Validate checks a schedule's name, script and repeat settings.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidSchedule)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSchedule, maxNameLength)
	}
	if s.ScriptID <= 0 {
		return fmt.Errorf("%w: no script", ErrInvalidSchedule)
	}
	valid := false
	for _, u := range AllRepeatUnits() {
		if s.RepeatUnit == u {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: unknown repeat unit %q", ErrInvalidSchedule, s.RepeatUnit)
	}
	if s.RepeatValue < 0 {
		return fmt.Errorf("%w: negative repeat value", ErrInvalidSchedule)
	}
	if s.RepeatUnit == RepeatDayOfWeek && s.RepeatValue > 0x7f {
		return fmt.Errorf("%w: weekday mask %#x exceeds 7 bits", ErrInvalidSchedule, s.RepeatValue)
	}
	return nil
}
