package metrics

import "sync"

// Mock records calls for tests. It is safe for concurrent use.
type Mock struct {
	mu                   sync.Mutex
	sessionsStarted      int
	sessionsEnded        int
	recorded             []int
	scrapped             int
	warnings             map[string]int
	leaderboardPublished int
}

func NewMock() *Mock {
	return &Mock{warnings: make(map[string]int)}
}

func (m *Mock) IncSessionsStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsStarted++
}

func (m *Mock) IncSessionsEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsEnded++
}

func (m *Mock) ObserveTurn(seconds int, saved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !saved {
		m.scrapped++
		return
	}
	m.recorded = append(m.recorded, seconds)
}

func (m *Mock) IncWarning(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[level]++
}

func (m *Mock) IncLeaderboardPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaderboardPublished++
}

func (m *Mock) SessionsStarted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionsStarted
}

func (m *Mock) SessionsEnded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionsEnded
}

// Recorded returns the durations passed to ObserveTurn with saved=true.
func (m *Mock) Recorded() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.recorded...)
}

func (m *Mock) Scrapped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrapped
}

func (m *Mock) Warnings(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings[level]
}

func (m *Mock) LeaderboardPublished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaderboardPublished
}
