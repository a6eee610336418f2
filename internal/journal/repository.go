package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Origin says which part of the hub wrote an entry.
type Origin string

const (
	OriginAction   Origin = "action"
	OriginScript   Origin = "script"
	OriginSchedule Origin = "schedule"
	OriginCommand  Origin = "command"
	OriginDevice   Origin = "device"
)

// Entry is one journal line.
type Entry struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Origin     Origin    `json:"origin"`
	Name       string    `json:"name,omitempty"`
	Message    string    `json:"message"`
}

// Filter controls which entries List returns.
type Filter struct {
	Origin Origin    // optional
	Name   string    // optional: exact match
	Since  time.Time // optional: entries at or after
	Limit  int       // default 50, max 500
}

const (
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"

	defaultListLimit = 50
	maxListLimit     = 500
)

// Repository defines the interface for journal persistence.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// entryRow is the journal table layout.
type entryRow struct {
	ID         string `db:"id"`
	RecordedAt string `db:"recorded_at"`
	Origin     string `db:"origin"`
	Name       string `db:"name"`
	Message    string `db:"message"`
}

// SQLiteRepository stores the journal in SQLite.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new journal repository.
func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts an entry. The ID and RecordedAt are generated if empty.
func (r *SQLiteRepository) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "jrn-" + uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO journal (id, recorded_at, origin, name, message)
		 VALUES (:id, :recorded_at, :origin, :name, :message)`,
		entryRow{
			ID:         e.ID,
			RecordedAt: e.RecordedAt.UTC().Format(timeLayout),
			Origin:     string(e.Origin),
			Name:       e.Name,
			Message:    e.Message,
		},
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns matching entries, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	var conditions []string
	var args []any
	if filter.Origin != "" {
		conditions = append(conditions, "origin = ?")
		args = append(args, string(filter.Origin))
	}
	if filter.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, filter.Name)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, recorded_at, origin, name, message FROM journal %s ORDER BY recorded_at DESC, rowid DESC LIMIT ?",
		where,
	)
	args = append(args, filter.Limit)

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		t, err := time.Parse(timeLayout, row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", row.RecordedAt, err)
		}
		entries = append(entries, Entry{
			ID:         row.ID,
			RecordedAt: t,
			Origin:     Origin(row.Origin),
			Name:       row.Name,
			Message:    row.Message,
		})
	}
	return entries, nil
}
