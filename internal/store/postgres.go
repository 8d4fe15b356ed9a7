package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/formguard/internal/ratelimit"
)

// PostgresStorage is a PostgreSQL implementation of ratelimit.Storage.
// The schema is created by Migrate.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a PostgreSQL-backed storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (p *PostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM rate_limit_state
		WHERE key = $1
	`

	var value string

	err := p.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, err
	}

	return value, true, nil
}

func (p *PostgresStorage) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO rate_limit_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := p.pool.Exec(ctx, query, key, value)

	return err
}

func (p *PostgresStorage) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM rate_limit_state WHERE key = $1`, key)

	return err
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ ratelimit.Storage = (*PostgresStorage)(nil)
