package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for schedule persistence.
type Repository interface {
	GetSchedule(ctx context.Context, id int64) (*Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)

	// ListEnabled returns enabled schedules ordered by next fire time.
	ListEnabled(ctx context.Context) ([]Schedule, error)

	CreateSchedule(ctx context.Context, s *Schedule) error
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
}

const scheduleColumns = `id, name, script_id, next_time, repeat_unit, repeat_value,
	remove_after_done, enabled, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetSchedule retrieves a schedule by ID.
func (r *SQLiteRepository) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	return s, nil
}

// ListSchedules retrieves every schedule ordered by name.
func (r *SQLiteRepository) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY name, id`)
}

// ListEnabled retrieves enabled schedules, unset fire times last.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules
		WHERE enabled = 1 ORDER BY next_time IS NULL, next_time, id`)
}

// CreateSchedule validates and inserts a schedule, setting its ID.
func (r *SQLiteRepository) CreateSchedule(ctx context.Context, s *Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (name, script_id, next_time, repeat_unit, repeat_value,
			remove_after_done, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name,
		s.ScriptID,
		nullableTime(s.NextTime),
		string(s.RepeatUnit),
		s.RepeatValue,
		boolToInt(s.RemoveAfterDone),
		boolToInt(s.Enabled),
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading schedule id: %w", err)
	}
	s.ID = id
	return nil
}

// UpdateSchedule validates and modifies an existing schedule.
func (r *SQLiteRepository) UpdateSchedule(ctx context.Context, s *Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET name = ?, script_id = ?, next_time = ?, repeat_unit = ?,
			repeat_value = ?, remove_after_done = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		s.Name,
		s.ScriptID,
		nullableTime(s.NextTime),
		string(s.RepeatUnit),
		s.RepeatValue,
		boolToInt(s.RemoveAfterDone),
		boolToInt(s.Enabled),
		s.UpdatedAt.Format(time.RFC3339),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule.
func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning schedule: %w", scanErr)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var s Schedule
	var nextTime sql.NullString
	var unit, createdAt, updatedAt string
	var removeAfterDone, enabled int

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&s.ScriptID,
		&nextTime,
		&unit,
		&s.RepeatValue,
		&removeAfterDone,
		&enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.RepeatUnit = RepeatUnit(unit)
	s.RemoveAfterDone = removeAfterDone != 0
	s.Enabled = enabled != 0
	if nextTime.Valid {
		s.NextTime = parseTime(nextTime.String)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
