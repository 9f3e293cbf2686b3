package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/turntally/internal/domain"
)

func TestConnect(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) Config
		wantErr bool
	}{
		"memory": {
			arrange: func(t *testing.T) Config {
				c := DefaultConfig()
				c.Store.Driver = DriverMemory
				return c
			},
		},
		"sqlite": {
			arrange: func(t *testing.T) Config {
				c := DefaultConfig()
				c.Store.DSN = ":memory:"
				return c
			},
		},
		"redis": {
			arrange: func(t *testing.T) Config {
				c := DefaultConfig()
				c.Store.Driver = DriverRedis
				c.Redis.Addrs = []string{miniredis.RunT(t).Addr()}
				return c
			},
		},
		"redis driver without redis": {
			arrange: func(t *testing.T) Config {
				c := DefaultConfig()
				c.Store.Driver = DriverRedis
				return c
			},
			wantErr: true,
		},
		"unsupported driver": {
			arrange: func(t *testing.T) Config {
				c := DefaultConfig()
				c.Store.Driver = "cassandra"
				return c
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			infra, err := Connect(ctx, tt.arrange(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(infra.Close)

			require.NoError(t, infra.Store.Ping(ctx))
			require.NoError(t, infra.Store.ReplaceGames(ctx, []domain.Game{{ID: "g1", Title: "Catan"}}))
			games, err := infra.Store.Games(ctx)
			require.NoError(t, err)
			assert.Len(t, games, 1)
		})
	}
}

func TestServer_HTTP(t *testing.T) {
	c := DefaultConfig()
	c.Store.Driver = DriverMemory

	s, err := Init(c)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	for _, path := range []string{"/healthz", "/metrics", "/v1/games", "/v1/leaderboards"} {
		w := httptest.NewRecorder()
		s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
