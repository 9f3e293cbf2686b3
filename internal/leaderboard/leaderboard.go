// Package leaderboard ranks players per category from their finished sessions.
package leaderboard

import (
	"sort"
	"time"

	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/stats"
)

// Size is the number of entries kept per category.
const Size = 10

// Category is a ranked dimension of player performance.
type Category struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`

	// entry is the label carried by each ranked row.
	entry     string
	ascending bool
	value     func(s stats.PlayerSummary) float64
}

// Categories lists every leaderboard in display order.
var Categories = []Category{
	{
		Key:         "fastest-average",
		Label:       "Fastest Average",
		Description: "Lowest average turn time",
		entry:       "Fastest Average",
		ascending:   true,
		value:       func(s stats.PlayerSummary) float64 { return s.AvgTurnTime },
	},
	{
		Key:         "most-sessions",
		Label:       "Most Sessions",
		Description: "Most games played",
		entry:       "Most Sessions",
		value:       func(s stats.PlayerSummary) float64 { return float64(s.TotalSessions) },
	},
	{
		Key:         "most-games",
		Label:       "Most Games",
		Description: "Most different games played",
		entry:       "Most Games",
		value:       func(s stats.PlayerSummary) float64 { return float64(s.GamesPlayed) },
	},
	{
		Key:         "fastest-turn",
		Label:       "Speed Record",
		Description: "Fastest single turn",
		entry:       "Fastest Turn",
		ascending:   true,
		value:       func(s stats.PlayerSummary) float64 { return float64(s.FastestTurn) },
	},
	{
		Key:         "total-time",
		Label:       "Total Play Time",
		Description: "Most total time played",
		entry:       "Total Play Time",
		value:       func(s stats.PlayerSummary) float64 { return float64(s.TotalTime) },
	},
	{
		Key:         "speed-demon",
		Label:       "Speed Demon",
		Description: "Most turns under 30 seconds",
		entry:       "Quick Turns",
		value:       func(s stats.PlayerSummary) float64 { return float64(s.TurnsUnder30s) },
	},
	{
		Key:         "most-active",
		Label:       "Most Active",
		Description: "Most sessions in the last 30 days",
		entry:       "Recent Activity",
		value:       func(s stats.PlayerSummary) float64 { return float64(s.RecentSessions) },
	},
}

// Lookup returns the category with the given key.
func Lookup(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Boards maps a category key to its ranked entries.
type Boards map[string][]domain.LeaderboardEntry

// Build ranks players in every category. Only players with at least one
// session take part, and a zero value never ranks. Equal values keep the
// order of players, there is no secondary key.
func Build(players []domain.Player, now time.Time) Boards {
	summaries := make([]stats.PlayerSummary, 0, len(players))
	for _, p := range players {
		if s := stats.Player(p, now); s.TotalSessions > 0 {
			summaries = append(summaries, s)
		}
	}

	boards := make(Boards, len(Categories))
	for _, c := range Categories {
		boards[c.Key] = rank(c, summaries)
	}
	return boards
}

func rank(c Category, summaries []stats.PlayerSummary) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(summaries))
	for _, s := range summaries {
		v := c.value(s)
		if v <= 0 {
			continue
		}

		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:     s.PlayerID,
			PlayerName:   s.Name,
			PlayerAvatar: s.Avatar,
			Value:        v,
			Category:     c.entry,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c.ascending {
			return entries[i].Value < entries[j].Value
		}
		return entries[i].Value > entries[j].Value
	})

	if len(entries) > Size {
		entries = entries[:Size]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
