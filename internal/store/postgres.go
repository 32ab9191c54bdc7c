package store

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS view_blobs (
		key        TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

type blobRecord struct {
	Key     string `db:"key"`
	Content string `db:"content"`
}

// Postgres stores values in the view_blobs table.
type Postgres struct {
	db *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err = db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err = db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create view_blobs table: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var record blobRecord
	err := pgxscan.Get(ctx, p.db, &record, `
		SELECT key, content
		FROM view_blobs
		WHERE key = $1;`,
		key,
	)
	if pgxscan.NotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.Content, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO view_blobs (key, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at;`,
		key, value,
	)
	return err
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
