package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/turntally/internal/anomaly"
	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/metrics"
	"github.com/victornm/turntally/internal/store"
)

const defaultTickInterval = time.Second

type Config struct {
	Store         *store.Store
	EventBus      *event.Bus
	Clock         clock.Clock
	NewTickerFunc clock.NewTickerFunc
	TickInterval  time.Duration
	Metrics       metrics.Metrics
	// IDFunc generates session and note ids. Defaults to UUIDv7.
	IDFunc func() string
}

// Service owns the single current session. Every accepted operation is
// persisted before it returns; while the session is running a ticker
// publishes the live turn state.
type Service struct {
	store     *store.Store
	eb        *event.Bus
	tc        clock.TurnClock
	newTicker clock.NewTickerFunc
	interval  time.Duration
	metrics   metrics.Metrics
	newID     func() string

	mu         sync.Mutex
	stopTicker func()
}

func NewService(c Config) *Service {
	s := &Service{
		store:     c.Store,
		eb:        c.EventBus,
		tc:        clock.NewTurnClock(c.Clock),
		newTicker: c.NewTickerFunc,
		interval:  c.TickInterval,
		metrics:   c.Metrics,
		newID:     c.IDFunc,
	}

	if s.newTicker == nil {
		s.newTicker = clock.NewTicker
	}
	if s.interval <= 0 {
		s.interval = defaultTickInterval
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	return s
}

// CreateRequest describes a new session.
type CreateRequest struct {
	GameID    string
	PlayerIDs []string
}

// Create sets up a new, not yet started session and makes it current.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateRoster(req.PlayerIDs); err != nil {
		return nil, err
	}

	cur, err := s.store.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if cur != nil {
		return nil, errors.Newf(errors.CodeFailedPrecondition, "session %s is still in progress", cur.ID)
	}

	games, err := s.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	if !slices.ContainsFunc(games, func(g domain.Game) bool { return g.ID == req.GameID }) {
		return nil, errors.Newf(errors.CodeNotFound, "game %s not found", req.GameID)
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	for _, id := range req.PlayerIDs {
		if !slices.ContainsFunc(players, func(p domain.Player) bool { return p.ID == id }) {
			return nil, errors.Newf(errors.CodeNotFound, "player %s not found", id)
		}
	}

	ss := &domain.Session{
		ID:        s.newID(),
		GameID:    req.GameID,
		PlayerIDs: slices.Clone(req.PlayerIDs),
		StartTime: s.tc.Now(),
		Notes:     []domain.SessionNote{},
	}
	normalize(ss)

	if err := s.store.SetCurrent(ctx, ss); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.InfoContext(ctx, "session: created",
		"session", ss.ID,
		"game", ss.GameID,
		"players", len(ss.PlayerIDs),
	)

	return ss, nil
}

// Current returns the current session.
func (s *Service) Current(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current(ctx)
}

// Snapshot is the live view of the current session.
type Snapshot struct {
	Session         *domain.Session  `json:"session"`
	State           domain.State     `json:"state"`
	Elapsed         int              `json:"elapsed"`
	Warning         domain.Warning   `json:"warning"`
	CurrentPlayerID string           `json:"currentPlayerId"`
	Players         []PlayerProgress `json:"players"`
}

// PlayerProgress summarises one roster position within the session.
type PlayerProgress struct {
	PlayerID  string  `json:"playerId"`
	TurnCount int     `json:"turnCount"`
	TotalTime int     `json:"totalTime"`
	AvgTime   float64 `json:"avgTime"`
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	return s.snapshot(ss), nil
}

func (s *Service) snapshot(ss *domain.Session) *Snapshot {
	elapsed := Elapsed(ss, s.tc)

	warning := domain.Warning{Level: domain.LevelNormal}
	if ss.State() == domain.StateRunning {
		warning = anomaly.Classify(elapsed, anomaly.Flatten(ss.Turns))
	}

	progress := make([]PlayerProgress, len(ss.PlayerIDs))
	for i, id := range ss.PlayerIDs {
		p := PlayerProgress{PlayerID: id, TurnCount: len(ss.Turns[i])}
		for _, d := range ss.Turns[i] {
			p.TotalTime += d
		}
		if p.TurnCount > 0 {
			p.AvgTime = decimal.NewFromInt(int64(p.TotalTime)).
				Div(decimal.NewFromInt(int64(p.TurnCount))).
				Round(2).
				InexactFloat64()
		}
		progress[i] = p
	}

	return &Snapshot{
		Session:         ss,
		State:           ss.State(),
		Elapsed:         elapsed,
		Warning:         warning,
		CurrentPlayerID: ss.CurrentPlayerID(),
		Players:         progress,
	}
}

func (s *Service) Start(ctx context.Context) (*domain.Session, error) {
	return s.mutate(ctx, "start", func(ss *domain.Session) error {
		if err := Start(ss, s.tc); err != nil {
			return err
		}
		s.metrics.IncSessionsStarted()
		return nil
	})
}

func (s *Service) Pause(ctx context.Context) (*domain.Session, error) {
	return s.mutate(ctx, "pause", func(ss *domain.Session) error {
		return Pause(ss, s.tc)
	})
}

func (s *Service) Resume(ctx context.Context) (*domain.Session, error) {
	return s.mutate(ctx, "resume", func(ss *domain.Session) error {
		return Resume(ss, s.tc)
	})
}

// AdvanceTurn moves to the next player. save=false scraps the running turn.
func (s *Service) AdvanceTurn(ctx context.Context, save bool) (*domain.Session, error) {
	var (
		playerID string
		duration int
	)

	ss, err := s.mutate(ctx, "advance turn", func(ss *domain.Session) error {
		playerID = ss.CurrentPlayerID()

		d, err := AdvanceTurn(ss, s.tc, save)
		if err != nil {
			return err
		}
		duration = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTurn(duration, save)
	s.eb.Publish(ctx, domain.EventTurnRecorded{
		SessionID: ss.ID,
		PlayerID:  playerID,
		Duration:  duration,
		Saved:     save,
	})

	return ss, nil
}

// ApplyPlayerSet replaces the roster of the current session.
func (s *Service) ApplyPlayerSet(ctx context.Context, playerIDs []string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	for _, id := range playerIDs {
		if !slices.ContainsFunc(players, func(p domain.Player) bool { return p.ID == id }) {
			return nil, errors.Newf(errors.CodeNotFound, "player %s not found", id)
		}
	}

	return s.mutateLocked(ctx, "edit players", func(ss *domain.Session) error {
		return ApplyPlayerSet(ss, playerIDs)
	})
}

// AddNote attaches a note to the current session, optionally about a player.
func (s *Service) AddNote(ctx context.Context, text, playerID string) (*domain.Session, error) {
	return s.mutate(ctx, "add note", func(ss *domain.Session) error {
		return AddNote(ss, domain.SessionNote{
			ID:        s.newID(),
			Timestamp: s.tc.Now(),
			PlayerID:  playerID,
			Note:      text,
		})
	})
}

// End finishes the current session, appends one history entry per player,
// files the session and clears the current slot.
//
// The ended session is saved before any history is written. If a later write
// fails, calling End again finishes the remaining writes without recording
// the session twice.
func (s *Service) End(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	resumed := ss.State() == domain.StateEnded
	if !resumed {
		inFlight, recorded, err := End(ss, s.tc)
		if err != nil {
			return nil, err
		}

		if err := s.store.SetCurrent(ctx, ss); err != nil {
			return nil, fmt.Errorf("end: save session: %w", err)
		}

		if recorded {
			s.metrics.ObserveTurn(inFlight, true)
		}
	}
	s.stopTicking()

	if err := s.record(ctx, ss); err != nil {
		return nil, err
	}

	s.metrics.IncSessionsEnded()

	slog.InfoContext(ctx, "session: ended",
		"session", ss.ID,
		"game", ss.GameID,
		"resumed", resumed,
	)

	s.eb.Publish(ctx, domain.EventSessionEnded{Session: *ss})

	return ss, nil
}

// record writes the history of an ended session. Each step skips what an
// earlier, interrupted attempt already wrote.
func (s *Service) record(ctx context.Context, ss *domain.Session) error {
	players, err := s.store.Players(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}

	var changed bool
	for i, rec := range Records(ss) {
		id := ss.PlayerIDs[i]
		idx := slices.IndexFunc(players, func(p domain.Player) bool { return p.ID == id })
		if idx < 0 {
			slog.WarnContext(ctx, "session: player missing, history not recorded",
				"session", ss.ID,
				"player", id,
			)
			continue
		}

		p := &players[idx]
		g := slices.IndexFunc(p.Games, func(g domain.PlayerGameStats) bool { return g.GameID == ss.GameID })
		if g < 0 {
			p.Games = append(p.Games, domain.PlayerGameStats{GameID: ss.GameID})
			g = len(p.Games) - 1
		}
		if slices.ContainsFunc(p.Games[g].Sessions, func(gs domain.GameSession) bool { return gs.SessionID == ss.ID }) {
			continue
		}
		p.Games[g].Sessions = append(p.Games[g].Sessions, rec)
		changed = true
	}

	if changed {
		if err := s.store.ReplacePlayers(ctx, players); err != nil {
			return fmt.Errorf("save players: %w", err)
		}
	}

	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	filed := slices.ContainsFunc(sessions, func(f domain.Session) bool { return f.ID == ss.ID })

	qs, err := s.store.QuickStart(ctx)
	if err != nil {
		return fmt.Errorf("load quick start: %w", err)
	}
	if !filed && !playedAt(qs, ss.GameID, *ss.EndTime) {
		qs = RememberQuickStart(qs, ss.GameID, ss.PlayerIDs, *ss.EndTime)
		if err := s.store.SetQuickStart(ctx, qs); err != nil {
			return fmt.Errorf("save quick start: %w", err)
		}
	}

	if !filed {
		if err := s.store.ReplaceSessions(ctx, append(sessions, *ss)); err != nil {
			return fmt.Errorf("save sessions: %w", err)
		}
	}

	if err := s.store.SetCurrent(ctx, nil); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}

	return nil
}

// Abandon drops the current session without recording anything.
func (s *Service) Abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.current(ctx)
	if err != nil {
		return err
	}

	if err := s.store.SetCurrent(ctx, nil); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}
	s.stopTicking()

	slog.InfoContext(ctx, "session: abandoned", "session", ss.ID)
	return nil
}

// QuickStart returns the recently played games and line-ups.
func (s *Service) QuickStart(ctx context.Context) (domain.QuickStart, error) {
	return s.store.QuickStart(ctx)
}

// Restore resumes ticking for a session left running by a previous process.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.store.Current(ctx)
	if err != nil {
		return fmt.Errorf("load current session: %w", err)
	}
	if ss == nil {
		return nil
	}

	normalize(ss)
	s.syncTicker(ss)

	slog.InfoContext(ctx, "session: restored", "session", ss.ID, "state", ss.State())
	return nil
}

// Stop halts the ticker. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTicking()
}

func (s *Service) mutate(ctx context.Context, op string, fn func(ss *domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocked(ctx, op, fn)
}

// mutateLocked applies fn to a fresh copy of the current session and persists
// the result. If fn fails the stored session is left untouched.
func (s *Service) mutateLocked(ctx context.Context, op string, fn func(ss *domain.Session) error) (*domain.Session, error) {
	ss, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	if err := fn(ss); err != nil {
		return nil, err
	}

	if err := s.store.SetCurrent(ctx, ss); err != nil {
		return nil, fmt.Errorf("%s: save session: %w", op, err)
	}

	s.syncTicker(ss)

	slog.DebugContext(ctx, "session: "+op,
		"session", ss.ID,
		"state", ss.State(),
		"player", ss.CurrentPlayerID(),
	)

	return ss, nil
}

func (s *Service) current(ctx context.Context) (*domain.Session, error) {
	ss, err := s.store.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if ss == nil {
		return nil, errors.Newf(errors.CodeNotFound, "no session in progress")
	}

	normalize(ss)
	return ss, nil
}
