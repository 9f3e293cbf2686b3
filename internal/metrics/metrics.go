package metrics

// Metrics collects session and leaderboard counters.
type Metrics interface {
	IncSessionsStarted()
	IncSessionsEnded()
	ObserveTurn(seconds int, saved bool)
	IncWarning(level string)
	IncLeaderboardPublished()
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncSessionsStarted()      {}
func (Nop) IncSessionsEnded()        {}
func (Nop) ObserveTurn(int, bool)    {}
func (Nop) IncWarning(string)        {}
func (Nop) IncLeaderboardPublished() {}
