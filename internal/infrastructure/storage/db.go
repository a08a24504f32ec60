package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the SQL differences between the supported engines.
type Dialect struct {
	Name        string
	placeholder sq.PlaceholderFormat
	// containsFn is a (haystack, needle) position function.
	containsFn string
	timeType   string
}

var (
	// Postgres is used with github.com/lib/pq.
	Postgres = Dialect{Name: "postgres", placeholder: sq.Dollar, containsFn: "strpos", timeType: "TIMESTAMPTZ"}
	// SQLite is used with modernc.org/sqlite.
	SQLite = Dialect{Name: "sqlite", placeholder: sq.Question, containsFn: "instr", timeType: "TIMESTAMP"}
)

func (d Dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}

// Open connects to the configured engine. SQLite DSNs are file paths and get
// WAL and busy-timeout pragmas; the pool is pinned to one connection.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, Dialect{}, fmt.Errorf("open postgres: %w", err)
		}
		return db, Postgres, nil
	case "sqlite", "":
		path := dsn
		if !strings.HasPrefix(path, "file:") {
			path = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", dsn)
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, Dialect{}, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, SQLite, nil
	default:
		return nil, Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func schema(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS processed_records (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			cms_post_id INTEGER NULL,
			title TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			match_key TEXT NOT NULL,
			target_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			tokens_used INTEGER NULL,
			created_at ` + d.timeType + ` NOT NULL,
			logs TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS processed_records_campaign_key
			ON processed_records (campaign_id, match_key)`,
		`CREATE TABLE IF NOT EXISTS campaign_runs (
			campaign_id TEXT PRIMARY KEY,
			last_run_at ` + d.timeType + ` NOT NULL
		)`,
	}
}

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range schema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d.Name, err)
		}
	}
	return nil
}

// isUniqueViolation recognises duplicate-key errors of both engines.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
