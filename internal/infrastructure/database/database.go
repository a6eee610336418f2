package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

const (
	driverName = "sqlite3"
	memoryPath = ":memory:"

	pingTimeout  = 5 * time.Second
	connLifetime = time.Hour
	connIdleTime = 30 * time.Minute
)

// Config is the database section of config.yaml.
type Config struct {
	// Path of the SQLite file; parent directories are created. ":memory:"
	// opens a private in-memory database.
	Path string

	// WALMode turns on write-ahead logging with NORMAL sync. It is ignored
	// for in-memory databases.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits for a lock.
	BusyTimeout int
}

// dsn builds the go-sqlite3 connection string for cfg.
func (cfg Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode && cfg.Path != memoryPath {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// DB is the hub's single SQLite handle, shared by every repository. The pool
// holds one connection, so writes from the scheduler and monitor loops are
// serialised in arrival order and an in-memory database survives for the
// life of the pool.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at cfg.Path and pings it.
// The file is restricted to its owner.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	onDisk := cfg.Path != memoryPath
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open(driverName, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if onDisk {
		conn.SetConnMaxLifetime(connLifetime)
		conn.SetConnMaxIdleTime(connIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if onDisk {
		// The file may not exist until the first write.
		_ = os.Chmod(cfg.Path, 0o600) //nolint:errcheck // see above
	}
	return &DB{DB: conn, path: cfg.Path}, nil
}

// Path is the path the database was opened with.
func (db *DB) Path() string { return db.path }

// Sqlx wraps the same pool for repositories that scan into tagged structs.
func (db *DB) Sqlx() *sqlx.DB {
	return sqlx.NewDb(db.DB, driverName)
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// BeginTx starts a transaction; callers defer Rollback, which is a no-op
// after Commit.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}

// Close closes the pool. It is safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
