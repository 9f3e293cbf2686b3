package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/turntally/internal/store"
	"github.com/victornm/turntally/internal/store/memory"
	"github.com/victornm/turntally/internal/store/pgkv"
	"github.com/victornm/turntally/internal/store/rediskv"
	"github.com/victornm/turntally/internal/store/sqlkv"
	"github.com/victornm/turntally/internal/telemetry"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = sqlkv.DriverSQLite
	DriverLibSQL   = sqlkv.DriverLibSQL
	DriverPostgres = "postgres"
)

// Infra holds the connections shared by the server and one-off commands.
type Infra struct {
	// Redis is nil when no address is configured.
	Redis redis.UniversalClient
	Store *store.Store

	closers []func()
}

// Connect opens Redis, if configured, and the store backend. SQL backends
// are migrated on open.
func Connect(ctx context.Context, c Config) (*Infra, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	i := &Infra{}

	if err := i.connectRedis(ctx, c); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	kv, err := i.openKV(ctx, c)
	if err != nil {
		i.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	i.Store = store.New(kv)

	return i, nil
}

func (i *Infra) connectRedis(ctx context.Context, c Config) error {
	if len(c.Redis.Addrs) == 0 {
		slog.InfoContext(ctx, "server: redis not configured")
		return nil
	}

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Redis.Addrs,
		Password: c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return err
	}

	i.Redis = r
	i.closers = append(i.closers, func() { _ = r.Close() })
	return nil
}

func (i *Infra) openKV(ctx context.Context, c Config) (store.KV, error) {
	switch c.Store.Driver {
	case "", DriverMemory:
		slog.WarnContext(ctx, "server: using in-memory store, data is lost on exit")
		return memory.New(), nil

	case DriverRedis:
		if i.Redis == nil {
			return nil, fmt.Errorf("driver %q needs redis.addrs", c.Store.Driver)
		}
		return rediskv.New(rediskv.Config{
			Redis:  i.Redis,
			Prefix: c.Redis.Prefix + ":store",
		}), nil

	case DriverSQLite, DriverLibSQL:
		db, err := sqlkv.Open(ctx, c.Store.Driver, c.Store.DSN)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, func() { _ = db.Close() })
		return sqlkv.New(db), nil

	case DriverPostgres:
		pool, err := pgkv.Connect(ctx, c.Store.DSN)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, pool.Close)
		return pgkv.New(pool), nil

	default:
		return nil, fmt.Errorf("unsupported driver %q", c.Store.Driver)
	}
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
	i.closers = nil
}
