// Package pgkv is a store.KV on PostgreSQL.
package pgkv

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/victornm/turntally/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens a pool, pings it and applies pending migrations.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgkv: parse config: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("pgkv: connect: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgkv: ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the embedded goose migrations through a database/sql view of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("pgkv: migrations: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("pgkv: goose provider: %w", err)
	}

	res, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("pgkv: migrate up: %w", err)
	}
	for _, r := range res {
		slog.InfoContext(ctx, "pgkv: applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

type KV struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *KV {
	return &KV{db: db}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := k.db.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1;`, key).Scan(&b)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgkv: select %s: %w", key, err)
	}
	return b, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = EXCLUDED.updated_at;`

	if _, err := k.db.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("pgkv: upsert %s: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.Exec(ctx, `DELETE FROM kv WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("pgkv: delete %s: %w", key, err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.db.Ping(ctx)
}
