package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/session"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionEnded struct {
		SessionID string `json:"sessionId"`
		GameID    string `json:"gameId"`
		PlayerID  string `json:"playerId,omitempty"`
		Turns     []int  `json:"turns,omitempty"`
		EndTime   *int64 `json:"endTime"`
	}

	TimerTick struct {
		SessionID string         `json:"sessionId"`
		PlayerID  string         `json:"playerId"`
		Elapsed   int            `json:"elapsed"`
		Warning   domain.Warning `json:"warning"`
	}

	TurnRecorded struct {
		SessionID string `json:"sessionId"`
		PlayerID  string `json:"playerId"`
		Duration  int    `json:"duration"`
		Saved     bool   `json:"saved"`
	}
)

// PublishLeaderboardUpdated pushes the fresh boards to live clients and the
// leaderboard channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	n := Notification{Event: e.Name(), Data: e.Leaderboards}
	a.hub.Broadcast(n)
	return a.publishNotification(ctx, a.channel("leaderboard"), n)
}

// PublishSessionEnded notifies live clients, then every seated player on
// their own channel with the turns they took.
func (a *API) PublishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	ss := e.Session

	a.hub.Broadcast(Notification{Event: e.Name(), Data: SessionEnded{
		SessionID: ss.ID,
		GameID:    ss.GameID,
		EndTime:   ss.EndTime,
	}})

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for i, playerID := range ss.PlayerIDs {
		var turns []int
		if i < len(ss.Turns) {
			turns = ss.Turns[i]
		}

		eg.Go(func() error {
			return a.publishNotification(ctx, a.channel("player", playerID), Notification{
				Event: e.Name(),
				Data: SessionEnded{
					SessionID: ss.ID,
					GameID:    ss.GameID,
					PlayerID:  playerID,
					Turns:     turns,
					EndTime:   ss.EndTime,
				},
			})
		})
	}

	return eg.Wait()
}

func (a *API) BroadcastTick(_ context.Context, e domain.EventTimerTicked) error {
	a.hub.Broadcast(Notification{Event: e.Name(), Data: TimerTick{
		SessionID: e.SessionID,
		PlayerID:  e.PlayerID,
		Elapsed:   e.Elapsed,
		Warning:   e.Warning,
	}})
	return nil
}

func (a *API) BroadcastTurn(_ context.Context, e domain.EventTurnRecorded) error {
	a.hub.Broadcast(Notification{Event: e.Name(), Data: TurnRecorded{
		SessionID: e.SessionID,
		PlayerID:  e.PlayerID,
		Duration:  e.Duration,
		Saved:     e.Saved,
	}})
	return nil
}

func (a *API) snapshotNotification(snap *session.Snapshot) Notification {
	return Notification{Event: "session.snapshot", Data: snap}
}

func (a *API) publishNotification(ctx context.Context, channel string, n Notification) error {
	if a.redis == nil {
		return nil
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", n.Event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) channel(parts ...string) string {
	return strings.Join(append([]string{a.prefix}, parts...), ":")
}
