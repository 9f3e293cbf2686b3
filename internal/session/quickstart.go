package session

import (
	"slices"
	"sort"
	"strings"

	"github.com/victornm/turntally/internal/domain"
)

const (
	maxRecentGames        = 10
	maxRecentCombinations = 5
)

// RememberQuickStart records that gameID was played by playerIDs at now.
// Player line-ups are compared regardless of seat order.
func RememberQuickStart(qs domain.QuickStart, gameID string, playerIDs []string, now int64) domain.QuickStart {
	games := slices.Clone(qs.RecentGames)
	if i := slices.IndexFunc(games, func(g domain.RecentGame) bool { return g.GameID == gameID }); i >= 0 {
		games[i].LastPlayed = now
		games[i].PlayCount++
	} else {
		games = append(games, domain.RecentGame{GameID: gameID, LastPlayed: now, PlayCount: 1})
	}
	sort.SliceStable(games, func(i, j int) bool { return games[i].LastPlayed > games[j].LastPlayed })
	if len(games) > maxRecentGames {
		games = games[:maxRecentGames]
	}

	ids := slices.Clone(playerIDs)
	slices.Sort(ids)
	key := strings.Join(ids, ",")

	combos := slices.Clone(qs.RecentPlayerCombinations)
	if i := slices.IndexFunc(combos, func(c domain.RecentPlayerCombination) bool { return comboKey(c.PlayerIDs) == key }); i >= 0 {
		combos[i].LastUsed = now
		combos[i].UseCount++
	} else {
		combos = append(combos, domain.RecentPlayerCombination{PlayerIDs: ids, LastUsed: now, UseCount: 1})
	}
	sort.SliceStable(combos, func(i, j int) bool { return combos[i].LastUsed > combos[j].LastUsed })
	if len(combos) > maxRecentCombinations {
		combos = combos[:maxRecentCombinations]
	}

	return domain.QuickStart{RecentGames: games, RecentPlayerCombinations: combos}
}

// playedAt reports whether gameID was last played exactly at end.
func playedAt(qs domain.QuickStart, gameID string, end int64) bool {
	return slices.ContainsFunc(qs.RecentGames, func(g domain.RecentGame) bool {
		return g.GameID == gameID && g.LastPlayed == end
	})
}

func comboKey(ids []string) string {
	s := slices.Clone(ids)
	slices.Sort(s)
	return strings.Join(s, ",")
}
