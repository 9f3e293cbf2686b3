package session

import (
	"slices"
	"strings"

	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
)

// MinPlayers is the smallest roster a session can have.
const MinPlayers = 2

// The functions below are the session state machine. Each one validates
// before touching ss, so a rejected transition leaves ss exactly as it was.

// Start moves a not-started session to running and starts the first turn.
func Start(ss *domain.Session, tc clock.TurnClock) error {
	if st := ss.State(); st != domain.StateNotStarted {
		return invalidTransition("start", st)
	}

	ref := tc.Start()
	ss.IsActive = true
	ss.IsPaused = false
	ss.CurrentTurnStartTime = &ref
	ss.PausedElapsed = nil
	return nil
}

// Pause freezes the running turn. The frozen value is kept on the session.
func Pause(ss *domain.Session, tc clock.TurnClock) error {
	if st := ss.State(); st != domain.StateRunning {
		return invalidTransition("pause", st)
	}

	e := Elapsed(ss, tc)
	ss.IsPaused = true
	ss.PausedElapsed = &e
	return nil
}

// Resume continues a paused turn from the elapsed time it was paused at.
func Resume(ss *domain.Session, tc clock.TurnClock) error {
	if st := ss.State(); st != domain.StatePaused {
		return invalidTransition("resume", st)
	}

	ref := tc.Resume(Elapsed(ss, tc))
	ss.IsPaused = false
	ss.CurrentTurnStartTime = &ref
	ss.PausedElapsed = nil
	return nil
}

// AdvanceTurn hands the turn to the next player. With save the elapsed time is
// appended to the current player's history; without it the turn is scrapped.
// It returns the elapsed seconds of the turn that just finished.
func AdvanceTurn(ss *domain.Session, tc clock.TurnClock, save bool) (int, error) {
	if st := ss.State(); st != domain.StateRunning {
		return 0, invalidTransition("advance turn", st)
	}

	e := Elapsed(ss, tc)
	if save {
		ss.Turns[ss.CurrentPlayerIndex] = append(ss.Turns[ss.CurrentPlayerIndex], e)
	}

	ss.CurrentPlayerIndex = (ss.CurrentPlayerIndex + 1) % len(ss.PlayerIDs)
	ref := tc.Start()
	ss.CurrentTurnStartTime = &ref
	return e, nil
}

// End finishes the session. A running clock contributes exactly one more turn
// to the current player; a paused or never started clock contributes none.
// The returned flag reports whether that in-flight turn was recorded.
func End(ss *domain.Session, tc clock.TurnClock) (int, bool, error) {
	st := ss.State()
	if st == domain.StateEnded {
		return 0, false, invalidTransition("end", st)
	}

	var (
		inFlight int
		recorded bool
	)
	if st == domain.StateRunning && ss.CurrentTurnStartTime != nil {
		inFlight = Elapsed(ss, tc)
		ss.Turns[ss.CurrentPlayerIndex] = append(ss.Turns[ss.CurrentPlayerIndex], inFlight)
		recorded = true
	}

	now := tc.Now()
	ss.EndTime = &now
	ss.IsActive = false
	ss.IsPaused = false
	ss.CurrentTurnStartTime = nil
	ss.PausedElapsed = nil
	return inFlight, recorded, nil
}

// ApplyPlayerSet replaces the roster. Turn histories follow the player id to
// its new position; new players start empty and removed players are dropped.
func ApplyPlayerSet(ss *domain.Session, ids []string) error {
	if st := ss.State(); st == domain.StateEnded {
		return invalidTransition("edit players", st)
	}
	if err := validateRoster(ids); err != nil {
		return err
	}

	byID := make(map[string][]int, len(ss.PlayerIDs))
	for i, id := range ss.PlayerIDs {
		byID[id] = ss.Turns[i]
	}

	turns := make([][]int, len(ids))
	for i, id := range ids {
		if t, ok := byID[id]; ok && t != nil {
			turns[i] = t
		} else {
			turns[i] = []int{}
		}
	}

	ss.PlayerIDs = append([]string(nil), ids...)
	ss.Turns = turns
	if ss.CurrentPlayerIndex >= len(ids) {
		ss.CurrentPlayerIndex = len(ids) - 1
	}
	return nil
}

// AddNote appends n to the session notes.
func AddNote(ss *domain.Session, n domain.SessionNote) error {
	if st := ss.State(); st == domain.StateEnded {
		return invalidTransition("add note", st)
	}
	if strings.TrimSpace(n.Note) == "" {
		return errors.Newf(errors.CodeInvalidArgument, "note is empty")
	}
	if n.PlayerID != "" && !slices.Contains(ss.PlayerIDs, n.PlayerID) {
		return errors.Newf(errors.CodeInvalidArgument, "player %s is not in the session", n.PlayerID)
	}

	ss.Notes = append(ss.Notes, n)
	return nil
}

// Elapsed reports the seconds of the current turn in any state.
func Elapsed(ss *domain.Session, tc clock.TurnClock) int {
	switch ss.State() {
	case domain.StateRunning:
		if ss.CurrentTurnStartTime == nil {
			return 0
		}
		return tc.Elapsed(*ss.CurrentTurnStartTime)
	case domain.StatePaused:
		if ss.PausedElapsed == nil {
			return 0
		}
		return *ss.PausedElapsed
	default:
		return 0
	}
}

// Records builds the per-player history entries of an ended session, one per
// roster position, in roster order.
func Records(ss *domain.Session) []domain.GameSession {
	var end int64
	if ss.EndTime != nil {
		end = *ss.EndTime
	}

	out := make([]domain.GameSession, len(ss.PlayerIDs))
	for i := range ss.PlayerIDs {
		turns := make([]domain.PlayerTurn, 0, len(ss.Turns[i]))
		for _, d := range ss.Turns[i] {
			turns = append(turns, domain.PlayerTurn{Duration: d, Timestamp: end})
		}

		out[i] = domain.GameSession{
			SessionID:    ss.ID,
			GameID:       ss.GameID,
			SessionStart: ss.StartTime,
			SessionEnd:   ss.EndTime,
			PlayerTurns:  turns,
			Notes:        append([]domain.SessionNote(nil), ss.Notes...),
		}
	}
	return out
}

// normalize pads Turns so it has one entry per player.
func normalize(ss *domain.Session) {
	if len(ss.Turns) > len(ss.PlayerIDs) {
		ss.Turns = ss.Turns[:len(ss.PlayerIDs)]
	}
	for len(ss.Turns) < len(ss.PlayerIDs) {
		ss.Turns = append(ss.Turns, []int{})
	}
	for i := range ss.Turns {
		if ss.Turns[i] == nil {
			ss.Turns[i] = []int{}
		}
	}
}

func validateRoster(ids []string) error {
	if len(ids) < MinPlayers {
		return errors.Newf(errors.CodeInvalidArgument, "a session needs at least %d players, got %d", MinPlayers, len(ids))
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return errors.Newf(errors.CodeInvalidArgument, "player id is empty")
		}
		if _, ok := seen[id]; ok {
			return errors.Newf(errors.CodeInvalidArgument, "player %s appears more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func invalidTransition(op string, st domain.State) error {
	return errors.Newf(errors.CodeFailedPrecondition, "cannot %s a %s session", op, st)
}
