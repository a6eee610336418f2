package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for action and script persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Action CRUD
	GetAction(ctx context.Context, id int64) (*Action, error)
	ListActions(ctx context.Context) ([]Action, error)
	CreateAction(ctx context.Context, a *Action) error
	UpdateAction(ctx context.Context, a *Action) error
	DeleteAction(ctx context.Context, id int64) error

	// Script CRUD; steps are stored and returned in order.
	GetScript(ctx context.Context, id int64) (*Script, error)
	ListScripts(ctx context.Context) ([]Script, error)
	CreateScript(ctx context.Context, s *Script) error
	UpdateScript(ctx context.Context, s *Script) error
	DeleteScript(ctx context.Context, id int64) error
}

// actionColumns is the SELECT column list for action queries.
const actionColumns = `id, name, type, device, element, params, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetAction retrieves an action by its unique identifier.
func (r *SQLiteRepository) GetAction(ctx context.Context, id int64) (*Action, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("querying action: %w", err)
	}
	return a, nil
}

// ListActions retrieves all actions ordered by name.
func (r *SQLiteRepository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		a, scanErr := scanAction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning action: %w", scanErr)
		}
		actions = append(actions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return actions, nil
}

// CreateAction validates and inserts a new action, setting its ID.
func (r *SQLiteRepository) CreateAction(ctx context.Context, a *Action) error {
	if err := ValidateAction(a); err != nil {
		return err
	}

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO actions (name, type, device, element, params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name,
		string(a.Type),
		a.Device,
		a.Element,
		a.Params,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading action id: %w", err)
	}
	a.ID = id
	return nil
}

// UpdateAction validates and modifies an existing action.
func (r *SQLiteRepository) UpdateAction(ctx context.Context, a *Action) error {
	if err := ValidateAction(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE actions SET name = ?, type = ?, device = ?, element = ?, params = ?, updated_at = ?
		WHERE id = ?`,
		a.Name,
		string(a.Type),
		a.Device,
		a.Element,
		a.Params,
		a.UpdatedAt.Format(time.RFC3339),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating action: %w", err)
	}
	return requireRow(result, ErrActionNotFound)
}

// DeleteAction removes an action; script steps referencing it go with it.
func (r *SQLiteRepository) DeleteAction(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting action: %w", err)
	}
	return requireRow(result, ErrActionNotFound)
}

// GetScript retrieves a script and its ordered steps.
func (r *SQLiteRepository) GetScript(ctx context.Context, id int64) (*Script, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, device, created_at, updated_at FROM scripts WHERE id = ?`, id)
	s, err := scanScript(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, fmt.Errorf("querying script: %w", err)
	}

	if s.Steps, err = r.loadSteps(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// ListScripts retrieves all scripts with their steps, ordered by name.
func (r *SQLiteRepository) ListScripts(ctx context.Context) ([]Script, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, device, created_at, updated_at FROM scripts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying scripts: %w", err)
	}
	defer rows.Close()

	var scripts []Script
	for rows.Next() {
		s, scanErr := scanScript(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning script: %w", scanErr)
		}
		scripts = append(scripts, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scripts: %w", err)
	}
	rows.Close()

	for i := range scripts {
		if scripts[i].Steps, err = r.loadSteps(ctx, scripts[i].ID); err != nil {
			return nil, err
		}
	}
	return scripts, nil
}

// CreateScript validates and inserts a script with its steps.
func (r *SQLiteRepository) CreateScript(ctx context.Context, s *Script) error {
	if err := ValidateScript(s); err != nil {
		return err
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	return r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO scripts (name, device, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			s.Name,
			nullableString(s.Device),
			s.CreatedAt.Format(time.RFC3339),
			s.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting script: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading script id: %w", err)
		}
		if err := insertSteps(ctx, tx, id, s.Steps); err != nil {
			return err
		}
		s.ID = id
		return nil
	})
}

// UpdateScript validates a script and replaces its name, scope and steps.
func (r *SQLiteRepository) UpdateScript(ctx context.Context, s *Script) error {
	if err := ValidateScript(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE scripts SET name = ?, device = ?, updated_at = ? WHERE id = ?`,
			s.Name,
			nullableString(s.Device),
			s.UpdatedAt.Format(time.RFC3339),
			s.ID,
		)
		if err != nil {
			return fmt.Errorf("updating script: %w", err)
		}
		if err := requireRow(result, ErrScriptNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM script_actions WHERE script_id = ?", s.ID); err != nil {
			return fmt.Errorf("clearing script steps: %w", err)
		}
		return insertSteps(ctx, tx, s.ID, s.Steps)
	})
}

// DeleteScript removes a script and its steps.
func (r *SQLiteRepository) DeleteScript(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scripts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting script: %w", err)
	}
	return requireRow(result, ErrScriptNotFound)
}

func (r *SQLiteRepository) loadSteps(ctx context.Context, scriptID int64) ([]Step, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_id, enabled FROM script_actions WHERE script_id = ? ORDER BY position`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("querying script steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var step Step
		var enabled int
		if err := rows.Scan(&step.ActionID, &enabled); err != nil {
			return nil, fmt.Errorf("scanning script step: %w", err)
		}
		step.Enabled = enabled != 0
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating script steps: %w", err)
	}
	return steps, nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, scriptID int64, steps []Step) error {
	for i, step := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO script_actions (script_id, position, action_id, enabled) VALUES (?, ?, ?, ?)`,
			scriptID, i, step.ActionID, boolToInt(step.Enabled))
		if err != nil {
			return fmt.Errorf("inserting script step %d: %w", i, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, rolling back on error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(scanner rowScanner) (*Action, error) {
	var a Action
	var actionType, createdAt, updatedAt string

	err := scanner.Scan(
		&a.ID,
		&a.Name,
		&actionType,
		&a.Device,
		&a.Element,
		&a.Params,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = ActionType(actionType)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func scanScript(scanner rowScanner) (*Script, error) {
	var s Script
	var device sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(&s.ID, &s.Name, &device, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if device.Valid {
		s.Device = device.String
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
