// Package stats rolls finished sessions up into per-player and per-game
// summaries. Summary functions are pure: the same records always produce the
// same output, and empty inputs resolve to zero values.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/turntally/internal/domain"
)

const (
	// RecentWindow is how far back a session counts as recent.
	RecentWindow = 30 * 24 * time.Hour

	quickTurn = 30
	longTurn  = 120
)

type PlayerSummary struct {
	PlayerID       string  `json:"playerId"`
	Name           string  `json:"name"`
	Avatar         string  `json:"avatar,omitempty"`
	TotalSessions  int     `json:"totalSessions"`
	TotalTurns     int     `json:"totalTurns"`
	TotalTime      int     `json:"totalTime"`
	AvgTurnTime    float64 `json:"avgTurnTime"`
	FastestTurn    int     `json:"fastestTurn"`
	SlowestTurn    int     `json:"slowestTurn"`
	GamesPlayed    int     `json:"gamesPlayed"`
	TurnsUnder30s  int     `json:"turnsUnder30s"`
	TurnsOver2Min  int     `json:"turnsOver2min"`
	RecentSessions int     `json:"recentSessions"`
}

// Player summarises every session p has played. now anchors the recent window.
func Player(p domain.Player, now time.Time) PlayerSummary {
	s := PlayerSummary{
		PlayerID: p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
	}

	recentFrom := now.Add(-RecentWindow).UnixMilli()
	played := make(map[string]struct{}, len(p.Games))

	for _, g := range p.Games {
		if len(g.Sessions) > 0 {
			played[g.GameID] = struct{}{}
		}

		for _, gs := range g.Sessions {
			s.TotalSessions++
			if gs.SessionStart > recentFrom {
				s.RecentSessions++
			}

			for _, t := range gs.PlayerTurns {
				d := t.Duration
				if s.TotalTurns == 0 || d < s.FastestTurn {
					s.FastestTurn = d
				}
				if d > s.SlowestTurn {
					s.SlowestTurn = d
				}
				if d < quickTurn {
					s.TurnsUnder30s++
				}
				if d > longTurn {
					s.TurnsOver2Min++
				}
				s.TotalTurns++
				s.TotalTime += d
			}
		}
	}

	s.GamesPlayed = len(played)
	s.AvgTurnTime = mean(int64(s.TotalTime), s.TotalTurns)
	return s
}

type GameSummary struct {
	GameID           string  `json:"gameId"`
	Title            string  `json:"title"`
	Image            Image   `json:"image"`
	SessionsCount    int     `json:"sessionsCount"`
	TotalPlayers     int     `json:"totalPlayers"`
	AvgSessionLength float64 `json:"avgSessionLength"`
	LastPlayed       *int64  `json:"lastPlayed,omitempty"`
}

// Game summarises g across every player's history. Session length is averaged
// over sessions that have an end time only.
func Game(g domain.Game, players []domain.Player) GameSummary {
	s := GameSummary{
		GameID: g.ID,
		Title:  g.Title,
		Image:  DisplayImage(&g),
	}

	var (
		ended     int
		totalMsec int64
	)

	for _, p := range players {
		for _, pg := range p.Games {
			if pg.GameID != g.ID {
				continue
			}

			s.TotalPlayers++
			s.SessionsCount += len(pg.Sessions)

			for _, gs := range pg.Sessions {
				if gs.SessionEnd != nil {
					ended++
					totalMsec += *gs.SessionEnd - gs.SessionStart
				}
				if s.LastPlayed == nil || gs.SessionStart > *s.LastPlayed {
					start := gs.SessionStart
					s.LastPlayed = &start
				}
			}
			break
		}
	}

	if ended > 0 {
		s.AvgSessionLength = decimal.NewFromInt(totalMsec).
			Div(decimal.NewFromInt(int64(ended) * 1000)).
			Round(2).
			InexactFloat64()
	}

	return s
}

// mean returns sum/n rounded to two places, or 0 when n is 0.
func mean(sum int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return decimal.NewFromInt(sum).
		Div(decimal.NewFromInt(int64(n))).
		Round(2).
		InexactFloat64()
}

const defaultIcon = "🎲"

// Image is how a game is pictured: a thumbnail URL or an avatar glyph.
type Image struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DisplayImage prefers the thumbnail, then a custom avatar, then the default
// dice. A nil game gets the default.
func DisplayImage(g *domain.Game) Image {
	switch {
	case g == nil:
		return Image{Type: "avatar", Value: defaultIcon}
	case g.Thumbnail != "":
		return Image{Type: "thumbnail", Value: g.Thumbnail}
	case g.Avatar != "" && g.Avatar != defaultIcon:
		return Image{Type: "avatar", Value: g.Avatar}
	default:
		return Image{Type: "avatar", Value: defaultIcon}
	}
}
