// Package database keeps a queryable SQL index of the population dataset.
// The CSV stays the system of record; every (re)load replaces the table
// contents, so the index can live in memory by default and still serve
// the paginated JSON API through ordinary SQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Database wraps the sql.DB handle together with the normalized driver
// name so query builders can pick the right placeholder dialect.
type Database struct {
	DB          *sql.DB
	Driver      string
	idGenerator chan int64
}

// Config holds everything needed to open one of the supported backends.
type Config struct {
	DBType    string // sqlite (default), genji, or pgx (PostgreSQL)
	DBPath    string // file path or :memory: for file-based drivers
	DBConn    string // raw DSN, overrides host/port fields for pgx
	DBHost    string
	DBPort    int
	DBUser    string
	DBPass    string
	DBName    string
	PGSSLMode string
	Port      int // server port, used in default file names
}

// normalizeDriver trims and lowercases the driver name once so the
// switch blocks below cannot miss a case over incidental whitespace.
func normalizeDriver(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// startIDGenerator hands out unique row IDs over a channel. A goroutine
// owns the counter, so concurrent imports never need a mutex.
func startIDGenerator(initialID int64) chan int64 {
	ch := make(chan int64)
	go func(next int64) {
		for {
			ch <- next
			next++
		}
	}(initialID)
	return ch
}

// New opens the configured backend and tunes its connection pool.
// SQLite and Genji are serialized over a single connection because the
// file engines do not tolerate concurrent writers.
func New(cfg Config) (*Database, error) {
	driver := normalizeDriver(cfg.DBType)

	var dsn string
	switch driver {
	case "sqlite":
		dsn = cfg.DBPath
		if dsn == "" {
			// The dataset reloads from CSV on every start, so nothing
			// is lost by keeping the index off disk.
			dsn = ":memory:"
		}
	case "genji":
		dsn = cfg.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("locations-%d.genji", cfg.Port)
		}
	case "pgx":
		if strings.TrimSpace(cfg.DBConn) != "" {
			dsn = cfg.DBConn
		} else {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.PGSSLMode)
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch driver {
	case "sqlite", "genji":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if driver == "sqlite" {
			tuneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			tuneSQLite(tuneCtx, db)
			cancel()
		}
	case "pgx":
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Fail fast on a dead backend instead of surfacing the error on the
	// first page view.
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var maxID sql.NullInt64
	_ = db.QueryRow(`SELECT MAX(id) FROM locations`).Scan(&maxID)
	initialID := int64(1)
	if maxID.Valid && maxID.Int64 >= initialID {
		initialID = maxID.Int64 + 1
	}

	return &Database{
		DB:          db,
		Driver:      driver,
		idGenerator: startIDGenerator(initialID),
	}, nil
}

// tuneSQLite applies the pragmas that keep bulk imports snappy. Failures
// only cost performance, so they are ignored; an in-memory database
// rejects WAL and that is fine.
func tuneSQLite(ctx context.Context, db *sql.DB) {
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
	} {
		_, _ = db.ExecContext(ctx, pragma)
	}
}

// InitSchema creates the locations table and its filter indexes.
func (db *Database) InitSchema() error {
	var schema string
	switch db.Driver {
	case "pgx":
		schema = `
CREATE TABLE IF NOT EXISTS locations (
  id         BIGINT PRIMARY KEY,
  name       TEXT,
  lat        DOUBLE PRECISION,
  lon        DOUBLE PRECISION,
  population DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_locations_name ON locations (name);
CREATE INDEX IF NOT EXISTS idx_locations_population ON locations (population);
`
	default:
		// SQLite and Genji share this portable subset.
		schema = `
CREATE TABLE IF NOT EXISTS locations (
  id         BIGINT PRIMARY KEY,
  name       TEXT,
  lat        DOUBLE,
  lon        DOUBLE,
  population DOUBLE
);
CREATE INDEX IF NOT EXISTS idx_locations_name ON locations (name);
`
	}

	for _, stmt := range splitStatements(schema) {
		if _, err := db.DB.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// splitStatements breaks a schema blob into single statements because
// some drivers refuse multi-statement Exec calls.
func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// NextID reserves a unique row ID.
func (db *Database) NextID() int64 {
	return <-db.idGenerator
}

// Close releases the underlying handle.
func (db *Database) Close() error {
	return db.DB.Close()
}
