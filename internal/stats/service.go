package stats

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/store"
)

const (
	UnknownGame   = "Unknown Game"
	UnknownPlayer = "Unknown Player"
)

type Config struct {
	Store *store.Store
	Clock clock.Clock
}

type Service struct {
	store *store.Store
	clock clock.Clock
}

func NewService(c Config) *Service {
	s := &Service{
		store: c.Store,
		clock: c.Clock,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	return s
}

// Players returns a summary for every known player, in store order.
func (s *Service) Players(ctx context.Context) ([]PlayerSummary, error) {
	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	now := s.clock.Now()
	out := make([]PlayerSummary, 0, len(players))
	for _, p := range players {
		out = append(out, Player(p, now))
	}
	return out, nil
}

// Games returns a summary for every known game, in store order.
func (s *Service) Games(ctx context.Context) ([]GameSummary, error) {
	games, err := s.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, Game(g, players))
	}
	return out, nil
}

type Overview struct {
	Players     int     `json:"players"`
	Games       int     `json:"games"`
	Sessions    int     `json:"sessions"`
	TotalTurns  int     `json:"totalTurns"`
	TotalTime   int     `json:"totalTime"`
	AvgTurnTime float64 `json:"avgTurnTime"`
}

// Overview totals turns and play time across all players.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	games, err := s.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	o := &Overview{
		Players:  len(players),
		Games:    len(games),
		Sessions: len(sessions),
	}

	now := s.clock.Now()
	for _, p := range players {
		ps := Player(p, now)
		o.TotalTurns += ps.TotalTurns
		o.TotalTime += ps.TotalTime
	}
	o.AvgTurnTime = mean(int64(o.TotalTime), o.TotalTurns)

	return o, nil
}

// SessionInfo is a finished session labelled for display.
type SessionInfo struct {
	domain.Session
	GameTitle   string   `json:"gameTitle"`
	GameImage   Image    `json:"gameDisplayImage"`
	PlayerNames []string `json:"playerNames"`
}

// History lists finished sessions, most recent first. Sessions that point at a
// deleted game or player get placeholder labels.
func (s *Service) History(ctx context.Context) ([]SessionInfo, error) {
	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	games, err := s.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, ss := range sessions {
		info := SessionInfo{
			Session:     ss,
			GameTitle:   UnknownGame,
			GameImage:   DisplayImage(nil),
			PlayerNames: make([]string, 0, len(ss.PlayerIDs)),
		}

		if i := slices.IndexFunc(games, func(g domain.Game) bool { return g.ID == ss.GameID }); i >= 0 {
			info.GameTitle = games[i].Title
			info.GameImage = DisplayImage(&games[i])
		}

		for _, id := range ss.PlayerIDs {
			name := UnknownPlayer
			if i := slices.IndexFunc(players, func(p domain.Player) bool { return p.ID == id }); i >= 0 {
				name = players[i].Name
			}
			info.PlayerNames = append(info.PlayerNames, name)
		}

		out = append(out, info)
	}

	slices.SortStableFunc(out, func(a, b SessionInfo) int {
		switch {
		case a.StartTime > b.StartTime:
			return -1
		case a.StartTime < b.StartTime:
			return 1
		}
		return 0
	})

	return out, nil
}

// DeleteSession removes a finished session from the history and from every
// player's records. A player's game entry left with no sessions is dropped.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	i := slices.IndexFunc(sessions, func(ss domain.Session) bool { return ss.ID == id })
	if i < 0 {
		return errors.Newf(errors.CodeNotFound, "session %s not found", id)
	}
	gameID := sessions[i].GameID

	players, err := s.store.Players(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}

	for pi := range players {
		games := players[pi].Games[:0:0]
		for _, g := range players[pi].Games {
			if g.GameID == gameID {
				g.Sessions = slices.DeleteFunc(slices.Clone(g.Sessions), func(gs domain.GameSession) bool {
					return gs.SessionID == id
				})
				if len(g.Sessions) == 0 {
					continue
				}
			}
			games = append(games, g)
		}
		players[pi].Games = games
	}

	if err := s.store.ReplacePlayers(ctx, players); err != nil {
		return fmt.Errorf("save players: %w", err)
	}

	if err := s.store.ReplaceSessions(ctx, slices.Delete(sessions, i, i+1)); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}

	slog.InfoContext(ctx, "stats: session deleted", "session", id, "game", gameID)
	return nil
}
