// Package store persists games, players, sessions and the single current
// session slot on top of a key-value backend. Every collection is read and
// replaced as a whole; absent keys read as empty collections.
package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/victornm/turntally/internal/domain"
)

// ErrNotFound is returned by KV.Get for an absent key.
var ErrNotFound = stderrors.New("store: key not found")

// KV is the backend contract. Implementations must be synchronous and durable.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Kind names a persisted collection.
type Kind string

const (
	KindGames      Kind = "games"
	KindPlayers    Kind = "players"
	KindSessions   Kind = "sessions"
	KindCurrent    Kind = "current_session"
	KindQuickStart Kind = "quick_start"
)

type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *Store) Games(ctx context.Context) ([]domain.Game, error) {
	return getAll[domain.Game](ctx, s.kv, KindGames)
}

func (s *Store) ReplaceGames(ctx context.Context, games []domain.Game) error {
	return put(ctx, s.kv, KindGames, games)
}

func (s *Store) Players(ctx context.Context) ([]domain.Player, error) {
	return getAll[domain.Player](ctx, s.kv, KindPlayers)
}

func (s *Store) ReplacePlayers(ctx context.Context, players []domain.Player) error {
	return put(ctx, s.kv, KindPlayers, players)
}

// Sessions returns finished sessions.
func (s *Store) Sessions(ctx context.Context) ([]domain.Session, error) {
	return getAll[domain.Session](ctx, s.kv, KindSessions)
}

func (s *Store) ReplaceSessions(ctx context.Context, sessions []domain.Session) error {
	return put(ctx, s.kv, KindSessions, sessions)
}

// Current returns the in-progress session, or nil if there is none.
func (s *Store) Current(ctx context.Context) (*domain.Session, error) {
	var ss domain.Session
	ok, err := get(ctx, s.kv, KindCurrent, &ss)
	if err != nil || !ok {
		return nil, err
	}
	if ss.Turns == nil {
		ss.Turns = make([][]int, len(ss.PlayerIDs))
	}
	return &ss, nil
}

// SetCurrent stores ss as the current session; nil clears the slot.
func (s *Store) SetCurrent(ctx context.Context, ss *domain.Session) error {
	if ss == nil {
		if err := s.kv.Delete(ctx, string(KindCurrent)); err != nil {
			return fmt.Errorf("store: clear %s: %w", KindCurrent, err)
		}
		return nil
	}
	return put(ctx, s.kv, KindCurrent, ss)
}

func (s *Store) QuickStart(ctx context.Context) (domain.QuickStart, error) {
	var qs domain.QuickStart
	if _, err := get(ctx, s.kv, KindQuickStart, &qs); err != nil {
		return domain.QuickStart{}, err
	}
	if qs.RecentGames == nil {
		qs.RecentGames = []domain.RecentGame{}
	}
	if qs.RecentPlayerCombinations == nil {
		qs.RecentPlayerCombinations = []domain.RecentPlayerCombination{}
	}
	return qs, nil
}

func (s *Store) SetQuickStart(ctx context.Context, qs domain.QuickStart) error {
	return put(ctx, s.kv, KindQuickStart, qs)
}

func getAll[T any](ctx context.Context, kv KV, kind Kind) ([]T, error) {
	var items []T
	if _, err := get(ctx, kv, kind, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func get(ctx context.Context, kv KV, kind Kind, v any) (bool, error) {
	b, err := kv.Get(ctx, string(kind))
	if stderrors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", kind, err)
	}

	if err := decode(b, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", kind, err)
	}
	return true, nil
}

func put(ctx context.Context, kv KV, kind Kind, v any) error {
	b, err := encode(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", kind, err)
	}

	if err := kv.Set(ctx, string(kind), b); err != nil {
		return fmt.Errorf("store: set %s: %w", kind, err)
	}
	return nil
}

// Values reuse the json field names so a stored blob reads the same as the API shape.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
