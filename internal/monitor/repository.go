package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Sample is one recorded observation of a monitored element.
type Sample struct {
	Device     string      `json:"device"`
	Kind       device.Kind `json:"kind"`
	Element    string      `json:"element"`
	RecordedAt time.Time   `json:"recorded_at"`
	Value      float64     `json:"value"`
}

// Query selects samples for ListSamples. Zero fields are unrestricted.
type Query struct {
	Device  string
	Kind    device.Kind
	Element string
	Since   time.Time
	Until   time.Time
	Limit   int // default 1000, max 10000
}

const (
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"

	defaultLimit = 1000
	maxLimit     = 10000
)

// Repository defines the interface for monitor sample persistence.
type Repository interface {
	AppendSample(ctx context.Context, s Sample) error

	// ListSamples returns matching samples, oldest first.
	ListSamples(ctx context.Context, q Query) ([]Sample, error)
}

type sampleRow struct {
	Device     string  `db:"device"`
	Kind       string  `db:"kind"`
	Element    string  `db:"element"`
	RecordedAt string  `db:"recorded_at"`
	Value      float64 `db:"value"`
}

// SQLiteRepository stores samples in the monitor_samples table.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new sample repository.
func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// AppendSample inserts one sample.
func (r *SQLiteRepository) AppendSample(ctx context.Context, s Sample) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO monitor_samples (device, kind, element, recorded_at, value)
		 VALUES (:device, :kind, :element, :recorded_at, :value)`,
		sampleRow{
			Device:     s.Device,
			Kind:       string(s.Kind),
			Element:    s.Element,
			RecordedAt: s.RecordedAt.UTC().Format(timeLayout),
			Value:      s.Value,
		},
	)
	if err != nil {
		return fmt.Errorf("inserting sample %s/%s/%s: %w", s.Device, s.Kind, s.Element, err)
	}
	return nil
}

// ListSamples returns samples matching q, oldest first.
func (r *SQLiteRepository) ListSamples(ctx context.Context, q Query) ([]Sample, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	var conditions []string
	var args []any
	if q.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, q.Device)
	}
	if q.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Element != "" {
		conditions = append(conditions, "element = ?")
		args = append(args, q.Element)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, q.Until.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT device, kind, element, recorded_at, value FROM monitor_samples %s ORDER BY recorded_at, id LIMIT ?",
		where,
	)
	args = append(args, q.Limit)

	var rows []sampleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}

	samples := make([]Sample, 0, len(rows))
	for _, row := range rows {
		t, err := time.Parse(timeLayout, row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing sample timestamp %q: %w", row.RecordedAt, err)
		}
		samples = append(samples, Sample{
			Device:     row.Device,
			Kind:       device.Kind(row.Kind),
			Element:    row.Element,
			RecordedAt: t,
			Value:      row.Value,
		})
	}
	return samples, nil
}

