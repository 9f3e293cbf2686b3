package domain

const (
	EventNameSessionEnded       = "session.ended"
	EventNameTurnRecorded       = "turn.recorded"
	EventNameTimerTicked        = "timer.ticked"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionEnded struct {
	Session Session
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }

type EventTurnRecorded struct {
	SessionID string
	PlayerID  string
	Duration  int
	Saved     bool
}

func (EventTurnRecorded) Name() string { return EventNameTurnRecorded }

// EventTimerTicked carries the live state of the running turn, emitted once per tick.
type EventTimerTicked struct {
	SessionID string
	PlayerID  string
	Elapsed   int
	Warning   Warning
}

func (EventTimerTicked) Name() string { return EventNameTimerTicked }

type EventLeaderboardUpdated struct {
	Leaderboards map[string][]LeaderboardEntry
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
