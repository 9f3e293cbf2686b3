package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/leaderboard"
	"github.com/victornm/turntally/internal/metrics"
	"github.com/victornm/turntally/internal/store"
	"github.com/victornm/turntally/internal/store/memory"
)

func TestService_GetLeaderboard(t *testing.T) {
	ctx := context.Background()
	s, st := makeService(t)

	require.NoError(t, st.ReplacePlayers(ctx, []domain.Player{
		player("p1", "g1", now, 20, 25, 22),
		player("p2", "g1", now, 60, 58, 65),
	}))

	got, err := s.GetLeaderboard(ctx, "fastest-turn")
	require.NoError(t, err)

	want := []domain.LeaderboardEntry{
		{PlayerID: "p1", PlayerName: "p1", Value: 20, Rank: 1, Category: "Fastest Turn"},
		{PlayerID: "p2", PlayerName: "p2", Value: 58, Rank: 2, Category: "Fastest Turn"},
	}
	require.Equal(t, want, got)

	_, err = s.GetLeaderboard(ctx, "unknown")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventSessionEnded
			withoutRedis   bool
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
			metrics         *metrics.Mock
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving session.ended": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionEnded{ended("s1")},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				got := out.publishedEvents[0].Leaderboards["total-time"]
				require.Len(t, got, 1)
				assert.Equal(t, "p1", got[0].PlayerID)
				assert.InDelta(t, 67, got[0].Value, 0)
				assert.Equal(t, 1, out.metrics.LeaderboardPublished())
			},
		},

		"should publish 1 event leaderboard.updated after receiving events session.ended within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionEnded{ended("s1"), ended("s2"), ended("s3")},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},

		"should publish every event leaderboard.updated without redis": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionEnded{ended("s1"), ended("s2")},
					withoutRedis:   true,
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{metrics: metrics.NewMock()}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			opts := []options{withEventBus(eb), withMetrics(out.metrics)}
			if in.withoutRedis {
				opts = append(opts, withoutRedis())
			}
			s, st := makeService(t, opts...)

			require.NoError(t, st.ReplacePlayers(context.Background(), []domain.Player{
				player("p1", "g1", now, 20, 25, 22),
			}))

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboards(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_PublishesAgainAfterThrottleWindow(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventLeaderboardUpdated
	)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.(domain.EventLeaderboardUpdated))
		return nil
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(published)
	}

	s, st := makeService(t, withEventBus(eb), withPublishInterval(50*time.Millisecond))

	require.NoError(t, st.ReplacePlayers(ctx, []domain.Player{
		player("p1", "g1", now, 20, 25, 22),
	}))
	require.NoError(t, s.UpdateLeaderboards(ctx, ended("s1")))

	// Two more sessions end inside the same window.
	require.NoError(t, st.ReplacePlayers(ctx, []domain.Player{
		player("p1", "g1", now, 20, 25, 22),
		player("p2", "g1", now, 60, 58, 65),
	}))
	require.NoError(t, s.UpdateLeaderboards(ctx, ended("s2")))
	require.NoError(t, s.UpdateLeaderboards(ctx, ended("s3")))

	require.Eventually(t, func() bool { return count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return count() > 2 }, 200*time.Millisecond, 20*time.Millisecond)
	eb.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, published[0].Leaderboards["total-time"], 1)
	assert.Len(t, published[1].Leaderboards["total-time"], 2, "the throttled update is published once the window closes")
}

func TestService_SubscribesToSessionEnded(t *testing.T) {
	eb := event.NewBus()

	published := make(chan domain.EventLeaderboardUpdated, 1)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		published <- e.(domain.EventLeaderboardUpdated)
		return nil
	})

	makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), ended("s1"))

	select {
	case e := <-published:
		assert.Len(t, e.Leaderboards, len(leaderboard.Categories))
	case <-time.After(time.Second):
		t.Fatal("leaderboard.updated was not published")
	}
	eb.Stop()
}

func ended(id string) domain.EventSessionEnded {
	end := now.UnixMilli()
	return domain.EventSessionEnded{Session: domain.Session{ID: id, GameID: "g1", EndTime: &end}}
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	st := store.New(memory.New())
	c := leaderboard.Config{
		Store:           st,
		EventBus:        event.NewBus(),
		Redis:           rc,
		Prefix:          "test",
		PublishInterval: time.Minute,
		Clock:           clock.NewFake(now),
	}

	for _, opt := range opts {
		opt(&c)
	}

	s := leaderboard.NewService(c)
	t.Cleanup(s.Stop)

	return s, st
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withMetrics(m metrics.Metrics) options {
	return func(c *leaderboard.Config) {
		c.Metrics = m
	}
}

func withPublishInterval(d time.Duration) options {
	return func(c *leaderboard.Config) {
		c.PublishInterval = d
	}
}

func withoutRedis() options {
	return func(c *leaderboard.Config) {
		c.Redis = nil
	}
}
