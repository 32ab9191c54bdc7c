package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Pure Go sqlite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS view_blobs (
		key        TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

// Sqlite stores values in a single table of a local sqlite file.
type Sqlite struct {
	db *sql.DB
}

func OpenSqlite(ctx context.Context, path string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// sqlite serialises writers anyway, one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create view_blobs table: %w", err)
	}

	return &Sqlite{db: db}, nil
}

func (s *Sqlite) Get(ctx context.Context, key string) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM view_blobs WHERE key = ?;`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

func (s *Sqlite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_blobs (key, content, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at;`,
		key, value,
	)
	return err
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}
