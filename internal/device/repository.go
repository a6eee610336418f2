package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is a persisted device row.
type Record struct {
	Name        string
	DisplayName string
	Protocol    Protocol
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines the persistence operations for devices, elements and
// startup status. It satisfies ControllerStore and OverviewStore.
type Repository interface {
	// UpsertDevice records a configured device, updating display name,
	// protocol and enabled flag if it already exists.
	UpsertDevice(ctx context.Context, d Device) error

	// EnsureDevice creates a bare device record if name is unknown.
	EnsureDevice(ctx context.Context, name string, protocol Protocol) error

	// GetDevice returns ErrDeviceNotFound if the device does not exist.
	GetDevice(ctx context.Context, name string) (*Record, error)

	ListDevices(ctx context.Context) ([]Record, error)

	// GetElement returns ErrElementNotFound if the element does not exist.
	GetElement(ctx context.Context, deviceName string, kind Kind, id string) (*Element, error)

	ListElements(ctx context.Context, deviceName string) ([]Element, error)

	// ListMonitored returns every monitored element of the given kinds.
	ListMonitored(ctx context.Context, kinds ...Kind) ([]Element, error)

	CreateElement(ctx context.Context, e Element) error

	// UpdateElement returns ErrElementNotFound if the element does not exist.
	UpdateElement(ctx context.Context, e Element) error

	SetStartupStatus(ctx context.Context, s StartupStatus) error
	ListStartupStatus(ctx context.Context, deviceName string) ([]StartupStatus, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `name, display_name, protocol, enabled, created_at, updated_at`

const elementColumns = `device, kind, id, display_name, enabled, monitored,
	monitor_interval, next_poll, unit, last_value`

// UpsertDevice inserts or updates a configured device.
func (r *SQLiteRepository) UpsertDevice(ctx context.Context, d Device) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			protocol = excluded.protocol,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		d.Name, d.DisplayName, string(d.Protocol()), boolToInt(d.Enabled), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", d.Name, err)
	}
	return nil
}

// EnsureDevice creates a device record on first sight.
func (r *SQLiteRepository) EnsureDevice(ctx context.Context, name string, protocol Protocol) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, name, string(protocol), now, now,
	)
	if err != nil {
		return fmt.Errorf("ensuring device %s: %w", name, err)
	}
	return nil
}

// GetDevice retrieves a device record by name.
func (r *SQLiteRepository) GetDevice(ctx context.Context, name string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE name = ?`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %s: %w", name, err)
	}
	return rec, nil
}

// ListDevices retrieves every device record ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// GetElement retrieves one element.
func (r *SQLiteRepository) GetElement(ctx context.Context, deviceName string, kind Kind, id string) (*Element, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+elementColumns+`
		FROM elements
		WHERE device = ? AND kind = ? AND id = ?`,
		deviceName, string(kind), id,
	)
	e, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrElementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying element %s/%s/%s: %w", deviceName, kind, id, err)
	}
	return e, nil
}

// ListElements retrieves every element of a device.
func (r *SQLiteRepository) ListElements(ctx context.Context, deviceName string) ([]Element, error) {
	return r.queryElements(ctx, `
		SELECT `+elementColumns+`
		FROM elements
		WHERE device = ?
		ORDER BY kind, id`, deviceName)
}

// ListMonitored retrieves monitored elements, optionally restricted to kinds.
func (r *SQLiteRepository) ListMonitored(ctx context.Context, kinds ...Kind) ([]Element, error) {
	query := `SELECT ` + elementColumns + ` FROM elements WHERE monitored = 1`
	args := make([]any, 0, len(kinds))
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		query += ` AND kind IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY device, kind, id`
	return r.queryElements(ctx, query, args...)
}

// CreateElement inserts element metadata.
func (r *SQLiteRepository) CreateElement(ctx context.Context, e Element) error {
	if err := ValidateName(e.ID); err != nil {
		return err
	}
	if err := ValidateKind(e.Kind); err != nil {
		return err
	}
	if e.Unit == "" {
		e.Unit = UnitCelsius
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO elements (`+elementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Device, string(e.Kind), e.ID, e.DisplayName,
		boolToInt(e.Enabled), boolToInt(e.Monitored), e.MonitorInterval,
		nullableTime(e.NextPoll), string(e.Unit), nullableFloat(e.LastValue),
	)
	if err != nil {
		return fmt.Errorf("inserting element %s/%s/%s: %w", e.Device, e.Kind, e.ID, err)
	}
	return nil
}

// UpdateElement replaces an element's metadata and monitor state.
func (r *SQLiteRepository) UpdateElement(ctx context.Context, e Element) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE elements SET
			display_name = ?, enabled = ?, monitored = ?, monitor_interval = ?,
			next_poll = ?, unit = ?, last_value = ?
		WHERE device = ? AND kind = ? AND id = ?`,
		e.DisplayName, boolToInt(e.Enabled), boolToInt(e.Monitored), e.MonitorInterval,
		nullableTime(e.NextPoll), string(e.Unit), nullableFloat(e.LastValue),
		e.Device, string(e.Kind), e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating element %s/%s/%s: %w", e.Device, e.Kind, e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrElementNotFound
	}
	return nil
}

// SetStartupStatus records the last value written to an element.
func (r *SQLiteRepository) SetStartupStatus(ctx context.Context, s StartupStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO startup_status (device, kind, element, value, flag, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device, kind, element) DO UPDATE SET
			value = excluded.value,
			flag = excluded.flag,
			updated_at = excluded.updated_at`,
		s.Device, string(s.Kind), s.Element, s.Value, boolToInt(s.Flag),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving startup status %s/%s/%s: %w", s.Device, s.Kind, s.Element, err)
	}
	return nil
}

// ListStartupStatus returns a device's startup status in switch, dimmer, heater order.
func (r *SQLiteRepository) ListStartupStatus(ctx context.Context, deviceName string) ([]StartupStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device, kind, element, value, flag
		FROM startup_status
		WHERE device = ?
		ORDER BY CASE kind WHEN 'switch' THEN 0 WHEN 'dimmer' THEN 1 ELSE 2 END, element`,
		deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("querying startup status: %w", err)
	}
	defer rows.Close()

	var out []StartupStatus
	for rows.Next() {
		var s StartupStatus
		var kind string
		var flag int
		if err := rows.Scan(&s.Device, &kind, &s.Element, &s.Value, &flag); err != nil {
			return nil, fmt.Errorf("scanning startup status: %w", err)
		}
		s.Kind = Kind(kind)
		s.Flag = flag != 0
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating startup status: %w", err)
	}
	return out, nil
}

// queryElements executes a query and returns a slice of elements.
func (r *SQLiteRepository) queryElements(ctx context.Context, query string, args ...any) ([]Element, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}
	defer rows.Close()

	var elements []Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		elements = append(elements, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating elements: %w", err)
	}
	return elements, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var rec Record
	var protocol, createdAt, updatedAt string
	var enabled int
	if err := scanner.Scan(&rec.Name, &rec.DisplayName, &protocol, &enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Protocol = Protocol(protocol)
	rec.Enabled = enabled != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &rec, nil
}

func scanElement(scanner rowScanner) (*Element, error) {
	var e Element
	var kind, unit string
	var enabled, monitored int
	var nextPoll sql.NullString
	var lastValue sql.NullFloat64

	if err := scanner.Scan(
		&e.Device, &kind, &e.ID, &e.DisplayName, &enabled, &monitored,
		&e.MonitorInterval, &nextPoll, &unit, &lastValue,
	); err != nil {
		return nil, err
	}

	e.Kind = Kind(kind)
	e.Unit = Unit(unit)
	e.Enabled = enabled != 0
	e.Monitored = monitored != 0
	if nextPoll.Valid {
		e.NextPoll, _ = time.Parse(time.RFC3339, nextPoll.String) //nolint:errcheck // Format is controlled
	}
	if lastValue.Valid {
		v := lastValue.Float64
		e.LastValue = &v
	}
	return &e, nil
}

// nullableTime stores the zero time as NULL and everything else as RFC3339 UTC.
func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
