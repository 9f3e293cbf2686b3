// Package sqlkv is a store.KV on database/sql, for SQLite files (modernc) and
// remote libsql databases.
package sqlkv

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/victornm/turntally/internal/store"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		slog.InfoContext(ctx, "sqlkv: opening local SQLite database", "dsn", dsn)
	case DriverLibSQL:
		slog.InfoContext(ctx, "sqlkv: opening libsql database")
	default:
		return nil, fmt.Errorf("sqlkv: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlkv: open: %w", err)
	}

	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlkv: ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlkv: migrations: %w", err)
	}

	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("sqlkv: goose provider: %w", err)
	}

	res, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("sqlkv: migrate up: %w", err)
	}
	for _, r := range res {
		slog.InfoContext(ctx, "sqlkv: applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

type KV struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *KV {
	return &KV{db: db, now: time.Now}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&b)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlkv: select %s: %w", key, err)
	}
	return b, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at;`

	if _, err := k.db.ExecContext(ctx, stmt, key, value, k.now().UnixMilli()); err != nil {
		return fmt.Errorf("sqlkv: upsert %s: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlkv: delete %s: %w", key, err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.db.PingContext(ctx)
}
