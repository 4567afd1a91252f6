package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_expires ON responses(expires_at);
`

// SQLiteCache keeps entries in a local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (and creates) the database at dbPath. ":memory:"
// gives a private in-memory database.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (*Entry, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM responses WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decode(data)
}

// Set upserts entry under key.
func (c *SQLiteCache) Set(ctx context.Context, key string, entry Entry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (key, data, expires_at) VALUES (?, ?, ?)",
		key, data, entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes entries that expired before olderThan and returns the
// number of rows deleted.
func (c *SQLiteCache) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM responses WHERE expires_at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return result.RowsAffected()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
