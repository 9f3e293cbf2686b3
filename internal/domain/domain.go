package domain

// Game is a tabletop game that sessions can be played of.
type Game struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Avatar      string `json:"avatar,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// Player is a person taking turns. Games holds one entry per game ever played,
// each carrying the append-only list of finished sessions.
type Player struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Avatar string            `json:"avatar,omitempty"`
	Games  []PlayerGameStats `json:"games"`
}

type PlayerGameStats struct {
	GameID   string        `json:"gameId"`
	Sessions []GameSession `json:"sessions"`
}

// GameSession is the immutable record of one player's participation in a finished session.
type GameSession struct {
	SessionID    string        `json:"sessionId"`
	GameID       string        `json:"gameId"`
	SessionStart int64         `json:"sessionStart"`
	SessionEnd   *int64        `json:"sessionEnd,omitempty"`
	PlayerTurns  []PlayerTurn  `json:"playerTurns"`
	Notes        []SessionNote `json:"notes,omitempty"`
}

// PlayerTurn is a single completed turn. Duration is in whole seconds, Timestamp in epoch millis.
type PlayerTurn struct {
	Duration  int   `json:"duration"`
	Timestamp int64 `json:"timestamp"`
}

type SessionNote struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	PlayerID  string `json:"playerId,omitempty"`
	Note      string `json:"note"`
}

// State is the lifecycle position of a Session.
type State string

const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateEnded      State = "ended"
)

// Session is an in-progress (or, once EndTime is set, finished) playthrough.
//
// Turns holds one sequence of recorded durations per player position, so
// len(Turns) == len(PlayerIDs) at all times.
type Session struct {
	ID                   string        `json:"id"`
	GameID               string        `json:"gameId"`
	PlayerIDs            []string      `json:"playerIds"`
	StartTime            int64         `json:"startTime"`
	EndTime              *int64        `json:"endTime,omitempty"`
	CurrentPlayerIndex   int           `json:"currentPlayerIndex"`
	IsActive             bool          `json:"isActive"`
	IsPaused             bool          `json:"isPaused"`
	CurrentTurnStartTime *int64        `json:"currentTurnStartTime,omitempty"`
	PausedElapsed        *int          `json:"pausedElapsed,omitempty"`
	Notes                []SessionNote `json:"notes,omitempty"`
	Turns                [][]int       `json:"turns"`
}

// State derives the lifecycle state from the persisted flags.
func (s *Session) State() State {
	switch {
	case s.EndTime != nil:
		return StateEnded
	case !s.IsActive:
		return StateNotStarted
	case s.IsPaused:
		return StatePaused
	default:
		return StateRunning
	}
}

// CurrentPlayerID returns the id of the player whose turn it is.
func (s *Session) CurrentPlayerID() string {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.PlayerIDs) {
		return ""
	}
	return s.PlayerIDs[s.CurrentPlayerIndex]
}

// Level grades how the running turn compares to the session so far.
type Level string

const (
	LevelFast          Level = "fast"
	LevelNormal        Level = "normal"
	LevelSlow          Level = "slow"
	LevelVerySlow      Level = "very-slow"
	LevelExtremelySlow Level = "extremely-slow"
)

// Warning is the live classification of the running turn.
type Warning struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Pulse   bool   `json:"shouldPulse"`
}

// LeaderboardEntry is one ranked row of a leaderboard category.
type LeaderboardEntry struct {
	PlayerID     string  `json:"playerId"`
	PlayerName   string  `json:"playerName"`
	PlayerAvatar string  `json:"playerAvatar,omitempty"`
	Value        float64 `json:"value"`
	Rank         int     `json:"rank"`
	Category     string  `json:"category"`
}

// QuickStart remembers recently played games and player line-ups.
type QuickStart struct {
	RecentGames              []RecentGame              `json:"recentGames"`
	RecentPlayerCombinations []RecentPlayerCombination `json:"recentPlayerCombinations"`
}

type RecentGame struct {
	GameID     string `json:"gameId"`
	LastPlayed int64  `json:"lastPlayed"`
	PlayCount  int    `json:"playCount"`
}

type RecentPlayerCombination struct {
	PlayerIDs []string `json:"playerIds"`
	LastUsed  int64    `json:"lastUsed"`
	UseCount  int      `json:"useCount"`
}
