package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/metrics"
	"github.com/victornm/turntally/internal/store"
)

const defaultPublishInterval = 200 * time.Millisecond

type Config struct {
	Store    *store.Store
	EventBus *event.Bus
	// Redis throttles publishing across instances. Without it every update is published.
	Redis           redis.UniversalClient
	Prefix          string
	PublishInterval time.Duration
	Clock           clock.Clock
	Metrics         metrics.Metrics
}

type Service struct {
	store    *store.Store
	eb       *event.Bus
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
	clock    clock.Clock
	metrics  metrics.Metrics

	mu       sync.Mutex
	trailing *time.Timer
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		eb:       c.EventBus,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: c.PublishInterval,
		clock:    c.Clock,
		metrics:  c.Metrics,
	}

	if s.interval <= 0 {
		s.interval = defaultPublishInterval
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}

	s.eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboards(ctx, e.(domain.EventSessionEnded))
	})

	return s
}

// GetLeaderboards ranks every category from the stored players.
func (s *Service) GetLeaderboards(ctx context.Context) (Boards, error) {
	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	return Build(players, s.clock.Now()), nil
}

// GetLeaderboard returns a single category.
func (s *Service) GetLeaderboard(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	if _, ok := Lookup(category); !ok {
		return nil, errors.Newf(errors.CodeNotFound, "leaderboard not found: category=%s", category)
	}

	boards, err := s.GetLeaderboards(ctx)
	if err != nil {
		return nil, err
	}

	return boards[category], nil
}

// UpdateLeaderboards reacts to a finished session by publishing fresh boards.
func (s *Service) UpdateLeaderboards(ctx context.Context, e domain.EventSessionEnded) error {
	var at int64
	if e.Session.EndTime != nil {
		at = *e.Session.EndTime
	}

	return s.schedulePublishLeaderboards(ctx, at)
}

// schedulePublishLeaderboards publishes at most once per interval across all
// instances sharing the Redis prefix.
func (s *Service) schedulePublishLeaderboards(ctx context.Context, at int64) error {
	if s.redis != nil {
		ok, err := s.redis.SetNX(ctx, s.publishTimeKey(), at, s.interval).Result()
		if err != nil {
			return fmt.Errorf("setnx: %w", err)
		}

		if !ok {
			slog.DebugContext(ctx, "leaderboard: publish throttled", "at", at)
			s.scheduleTrailingPublish(ctx)
			return nil
		}
	}

	return s.publishLeaderboards(ctx)
}

// scheduleTrailingPublish publishes once more when the current window closes,
// so updates that were throttled still reach subscribers.
func (s *Service) scheduleTrailingPublish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trailing != nil {
		return
	}

	wait, err := s.redis.PTTL(ctx, s.publishTimeKey()).Result()
	if err != nil || wait <= 0 {
		wait = s.interval
	}

	ctx = context.WithoutCancel(ctx)
	s.trailing = time.AfterFunc(wait, func() {
		s.mu.Lock()
		s.trailing = nil
		s.mu.Unlock()

		if err := s.redis.Set(ctx, s.publishTimeKey(), s.clock.Now().UnixMilli(), s.interval).Err(); err != nil {
			slog.ErrorContext(ctx, "leaderboard: trailing publish failed", "error", err)
			return
		}

		if err := s.publishLeaderboards(ctx); err != nil {
			slog.ErrorContext(ctx, "leaderboard: trailing publish failed", "error", err)
		}
	})
}

// Stop cancels a pending trailing publish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trailing != nil {
		s.trailing.Stop()
		s.trailing = nil
	}
}

func (s *Service) publishLeaderboards(ctx context.Context) error {
	boards, err := s.GetLeaderboards(ctx)
	if err != nil {
		return fmt.Errorf("get leaderboards failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboards: boards,
	})
	s.metrics.IncLeaderboardPublished()

	return nil
}

func (s *Service) publishTimeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
