package session

import (
	"context"

	"github.com/victornm/turntally/internal/anomaly"
	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
)

// turn is what the ticker needs to know about the running turn. It is copied
// out of the session so the ticker never reads shared state.
type turn struct {
	sessionID string
	playerID  string
	ref       int64
	completed []int
}

// syncTicker restarts the ticker for ss, or leaves it stopped if ss is not
// running. Callers hold s.mu.
func (s *Service) syncTicker(ss *domain.Session) {
	s.stopTicking()

	if ss.State() != domain.StateRunning || ss.CurrentTurnStartTime == nil {
		return
	}

	t := turn{
		sessionID: ss.ID,
		playerID:  ss.CurrentPlayerID(),
		ref:       *ss.CurrentTurnStartTime,
		completed: anomaly.Flatten(ss.Turns),
	}

	tk := s.newTicker(s.interval)
	done := make(chan struct{})
	s.stopTicker = func() {
		close(done)
		tk.Stop()
	}

	go s.tick(tk, done, t)
}

// stopTicking is the single cancel point of the ticker. Callers hold s.mu.
func (s *Service) stopTicking() {
	if s.stopTicker == nil {
		return
	}
	s.stopTicker()
	s.stopTicker = nil
}

func (s *Service) tick(tk clock.Ticker, done <-chan struct{}, t turn) {
	last := domain.LevelNormal

	for {
		select {
		case <-done:
			return
		case <-tk.C():
		}

		select {
		case <-done:
			return
		default:
		}

		elapsed := s.tc.Elapsed(t.ref)
		w := anomaly.Classify(elapsed, t.completed)
		if w.Level != last && w.Level != domain.LevelNormal {
			s.metrics.IncWarning(string(w.Level))
		}
		last = w.Level

		s.eb.Publish(context.Background(), domain.EventTimerTicked{
			SessionID: t.sessionID,
			PlayerID:  t.playerID,
			Elapsed:   elapsed,
			Warning:   w,
		})
	}
}
