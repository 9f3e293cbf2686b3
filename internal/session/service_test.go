package session_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/turntally/internal/clock"
	"github.com/victornm/turntally/internal/domain"
	"github.com/victornm/turntally/internal/errors"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/metrics"
	"github.com/victornm/turntally/internal/session"
	"github.com/victornm/turntally/internal/stats"
	"github.com/victornm/turntally/internal/store"
	"github.com/victornm/turntally/internal/store/memory"
)

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	ss, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StateNotStarted, ss.State())

	_, err = f.svc.Start(ctx)
	require.NoError(t, err)

	for _, d := range []int{20, 60, 25, 58, 22} {
		f.clock.Advance(time.Duration(d) * time.Second)
		_, err = f.svc.AdvanceTurn(ctx, true)
		require.NoError(t, err)
	}

	// p2's third turn is still running when the game ends.
	f.clock.Advance(65 * time.Second)
	ended, err := f.svc.End(ctx)
	require.NoError(t, err)
	f.eb.Stop()

	assert.Equal(t, domain.StateEnded, ended.State())
	assert.Equal(t, [][]int{{20, 25, 22}, {60, 58, 65}}, ended.Turns)

	_, err = f.svc.Current(ctx)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound), "current slot is cleared")

	players, err := f.store.Players(ctx)
	require.NoError(t, err)
	for _, p := range players[:2] {
		require.Len(t, p.Games, 1)
		assert.Equal(t, "g1", p.Games[0].GameID)
		require.Len(t, p.Games[0].Sessions, 1)
		assert.Len(t, p.Games[0].Sessions[0].PlayerTurns, 3)
	}
	assert.Empty(t, players[2].Games, "players outside the session are untouched")

	p2 := stats.Player(players[1], f.clock.Now())
	assert.InDelta(t, 61, p2.AvgTurnTime, 0.001)
	assert.Equal(t, 65, p2.SlowestTurn)

	sessions, err := f.store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, ss.ID, sessions[0].ID)

	qs, err := f.store.QuickStart(ctx)
	require.NoError(t, err)
	require.Len(t, qs.RecentGames, 1)
	assert.Equal(t, 1, qs.RecentGames[0].PlayCount)
	require.Len(t, qs.RecentPlayerCombinations, 1)
	assert.Equal(t, []string{"p1", "p2"}, qs.RecentPlayerCombinations[0].PlayerIDs)

	assert.Equal(t, 1, f.metrics.SessionsStarted())
	assert.Equal(t, 1, f.metrics.SessionsEnded())
	assert.Equal(t, []int{20, 60, 25, 58, 22, 65}, f.metrics.Recorded())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.ended, 1)
	assert.Equal(t, ss.ID, f.ended[0].Session.ID)
	assert.Len(t, f.turns, 5)
}

func TestService_Create(t *testing.T) {
	tests := map[string]struct {
		req      session.CreateRequest
		existing bool
		wantCode errors.Code
	}{
		"valid":                  {req: session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p3"}}},
		"unknown game":           {req: session.CreateRequest{GameID: "g9", PlayerIDs: []string{"p1", "p2"}}, wantCode: errors.CodeNotFound},
		"unknown player":         {req: session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p9"}}, wantCode: errors.CodeNotFound},
		"single player":          {req: session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1"}}, wantCode: errors.CodeInvalidArgument},
		"duplicate player":       {req: session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p1"}}, wantCode: errors.CodeInvalidArgument},
		"session already exists": {req: session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}}, existing: true, wantCode: errors.CodeFailedPrecondition},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := makeFixture(t)

			if tt.existing {
				_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p2", "p3"}})
				require.NoError(t, err)
			}

			ss, err := f.svc.Create(ctx, tt.req)
			if tt.wantCode != 0 {
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, [][]int{{}, {}}, ss.Turns)
			assert.Equal(t, f.clock.Now().UnixMilli(), ss.StartTime)

			cur, err := f.svc.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, ss.ID, cur.ID)
		})
	}
}

func TestService_NoSession(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	ops := map[string]func() error{
		"start":    func() error { _, err := f.svc.Start(ctx); return err },
		"pause":    func() error { _, err := f.svc.Pause(ctx); return err },
		"resume":   func() error { _, err := f.svc.Resume(ctx); return err },
		"advance":  func() error { _, err := f.svc.AdvanceTurn(ctx, true); return err },
		"end":      func() error { _, err := f.svc.End(ctx); return err },
		"note":     func() error { _, err := f.svc.AddNote(ctx, "hi", ""); return err },
		"players":  func() error { _, err := f.svc.ApplyPlayerSet(ctx, []string{"p1", "p2"}); return err },
		"snapshot": func() error { _, err := f.svc.Snapshot(ctx); return err },
		"abandon":  func() error { return f.svc.Abandon(ctx) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.HasCode(op(), errors.CodeNotFound))
		})
	}
}

func TestService_RejectedOperationKeepsStoredSession(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	before, err := f.store.Current(ctx)
	require.NoError(t, err)

	_, err = f.svc.AdvanceTurn(ctx, true)
	assert.True(t, errors.HasCode(err, errors.CodeFailedPrecondition))

	_, err = f.svc.ApplyPlayerSet(ctx, []string{"p1"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))

	after, err := f.store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_Snapshot(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx)
	require.NoError(t, err)

	// p1 and p2 alternate short turns, then p1 stalls.
	for _, d := range []int{10, 12, 11, 13, 9, 11} {
		f.clock.Advance(time.Duration(d) * time.Second)
		_, err = f.svc.AdvanceTurn(ctx, true)
		require.NoError(t, err)
	}
	f.clock.Advance(15 * time.Second)

	snap, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.StateRunning, snap.State)
	assert.Equal(t, 15, snap.Elapsed)
	assert.Equal(t, "p1", snap.CurrentPlayerID)
	assert.Equal(t, domain.LevelExtremelySlow, snap.Warning.Level)
	assert.True(t, snap.Warning.Pulse)
	assert.Equal(t, []session.PlayerProgress{
		{PlayerID: "p1", TurnCount: 3, TotalTime: 30, AvgTime: 10},
		{PlayerID: "p2", TurnCount: 3, TotalTime: 36, AvgTime: 12},
	}, snap.Players)

	_, err = f.svc.Pause(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	snap, err = f.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaused, snap.State)
	assert.Equal(t, 15, snap.Elapsed)
	assert.Equal(t, domain.LevelNormal, snap.Warning.Level)
}

func TestService_Ticker(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	require.Equal(t, 0, f.tickers.count(), "no ticker before the clock starts")

	_, err = f.svc.Start(ctx)
	require.NoError(t, err)
	tk := f.tickers.last()

	f.clock.Advance(3 * time.Second)
	tk.Tick(f.clock.Now())

	select {
	case e := <-f.ticks:
		assert.Equal(t, "p1", e.PlayerID)
		assert.Equal(t, 3, e.Elapsed)
		assert.Equal(t, domain.LevelNormal, e.Warning.Level)
	case <-time.After(time.Second):
		t.Fatal("timer.ticked was not published")
	}

	_, err = f.svc.Pause(ctx)
	require.NoError(t, err)
	assert.True(t, tk.Stopped(), "pause stops ticking")
	assert.Equal(t, 1, f.tickers.count())

	_, err = f.svc.Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, f.tickers.count())

	_, err = f.svc.AdvanceTurn(ctx, true)
	require.NoError(t, err)
	assert.True(t, f.tickers.at(1).Stopped())

	tk = f.tickers.last()
	f.clock.Advance(2 * time.Second)
	tk.Tick(f.clock.Now())

	select {
	case e := <-f.ticks:
		assert.Equal(t, "p2", e.PlayerID)
		assert.Equal(t, 2, e.Elapsed)
	case <-time.After(time.Second):
		t.Fatal("timer.ticked was not published")
	}

	_, err = f.svc.End(ctx)
	require.NoError(t, err)
	assert.True(t, tk.Stopped(), "end stops ticking")
}

func TestService_ResumeSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx)
	require.NoError(t, err)
	f.clock.Advance(37 * time.Second)
	_, err = f.svc.Pause(ctx)
	require.NoError(t, err)
	f.svc.Stop()

	// A fresh service over the same store picks the session up.
	f.clock.Advance(10 * time.Minute)
	svc := session.NewService(session.Config{
		Store:         f.store,
		EventBus:      f.eb,
		Clock:         f.clock,
		NewTickerFunc: f.tickers.new,
	})
	require.NoError(t, svc.Restore(ctx))

	_, err = svc.Resume(ctx)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, snap.Elapsed)
	svc.Stop()
}

func TestService_NotesAndRoster(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	_, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx)
	require.NoError(t, err)
	f.clock.Advance(8 * time.Second)
	_, err = f.svc.AdvanceTurn(ctx, true)
	require.NoError(t, err)

	ss, err := f.svc.AddNote(ctx, "bought a road", "p2")
	require.NoError(t, err)
	require.Len(t, ss.Notes, 1)
	assert.Equal(t, "id-2", ss.Notes[0].ID, "session took id-1")
	assert.Equal(t, f.clock.Now().UnixMilli(), ss.Notes[0].Timestamp)

	_, err = f.svc.ApplyPlayerSet(ctx, []string{"p1", "p9"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	ss, err = f.svc.ApplyPlayerSet(ctx, []string{"p3", "p1"})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{}, {8}}, ss.Turns)

	require.NoError(t, f.svc.Abandon(ctx))
	sessions, err := f.store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions, "abandoned sessions are not recorded")
}

func TestService_EndRetriesAfterStoreFailure(t *testing.T) {
	tests := map[string]store.Kind{
		"saving the ended session": store.KindCurrent,
		"saving player history":    store.KindPlayers,
		"saving quick start":       store.KindQuickStart,
		"filing the session":       store.KindSessions,
	}

	for name, kind := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := &flakyKV{KV: memory.New()}
			f := makeFixtureWithKV(t, kv)

			ss, err := f.svc.Create(ctx, session.CreateRequest{GameID: "g1", PlayerIDs: []string{"p1", "p2"}})
			require.NoError(t, err)
			_, err = f.svc.Start(ctx)
			require.NoError(t, err)
			f.clock.Advance(20 * time.Second)

			kv.failOnce(kind)
			_, err = f.svc.End(ctx)
			require.ErrorIs(t, err, errBoom)

			ended, err := f.svc.End(ctx)
			require.NoError(t, err)
			assert.Equal(t, [][]int{{20}, {}}, ended.Turns)

			_, err = f.svc.End(ctx)
			assert.True(t, errors.HasCode(err, errors.CodeNotFound), "got %v", err)
			f.eb.Stop()

			players, err := f.store.Players(ctx)
			require.NoError(t, err)
			for _, p := range players[:2] {
				require.Len(t, p.Games, 1, p.ID)
				assert.Len(t, p.Games[0].Sessions, 1, p.ID)
			}

			sessions, err := f.store.Sessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, ss.ID, sessions[0].ID)

			qs, err := f.store.QuickStart(ctx)
			require.NoError(t, err)
			require.Len(t, qs.RecentGames, 1)
			assert.Equal(t, 1, qs.RecentGames[0].PlayCount)
			require.Len(t, qs.RecentPlayerCombinations, 1)
			assert.Equal(t, 1, qs.RecentPlayerCombinations[0].UseCount)

			assert.Equal(t, 1, f.metrics.SessionsEnded())
			assert.Equal(t, []int{20}, f.metrics.Recorded())

			f.mu.Lock()
			defer f.mu.Unlock()
			assert.Len(t, f.ended, 1)
		})
	}
}

var errBoom = stderrors.New("boom")

// flakyKV fails the next write to one key.
type flakyKV struct {
	store.KV

	mu   sync.Mutex
	fail string
}

func (kv *flakyKV) failOnce(k store.Kind) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.fail = string(k)
}

func (kv *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	kv.mu.Lock()
	fail := kv.fail == key
	if fail {
		kv.fail = ""
	}
	kv.mu.Unlock()

	if fail {
		return errBoom
	}
	return kv.KV.Set(ctx, key, value)
}

type fixture struct {
	svc     *session.Service
	store   *store.Store
	eb      *event.Bus
	clock   *clock.Fake
	tickers *tickers
	metrics *metrics.Mock

	ticks chan domain.EventTimerTicked

	mu    sync.Mutex
	ended []domain.EventSessionEnded
	turns []domain.EventTurnRecorded
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()
	return makeFixtureWithKV(t, memory.New())
}

func makeFixtureWithKV(t *testing.T, kv store.KV) *fixture {
	t.Helper()

	f := &fixture{
		store:   store.New(kv),
		eb:      event.NewBus(),
		clock:   clock.NewFake(epoch),
		tickers: &tickers{},
		metrics: metrics.NewMock(),
		ticks:   make(chan domain.EventTimerTicked, 16),
	}

	ctx := context.Background()
	require.NoError(t, f.store.ReplaceGames(ctx, []domain.Game{{ID: "g1", Title: "Catan"}}))
	require.NoError(t, f.store.ReplacePlayers(ctx, []domain.Player{
		{ID: "p1", Name: "Ada"},
		{ID: "p2", Name: "Grace"},
		{ID: "p3", Name: "Linus"},
	}))

	f.eb.Subscribe(domain.EventNameTimerTicked, func(ctx context.Context, e event.Event) error {
		f.ticks <- e.(domain.EventTimerTicked)
		return nil
	})
	f.eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.ended = append(f.ended, e.(domain.EventSessionEnded))
		return nil
	})
	f.eb.Subscribe(domain.EventNameTurnRecorded, func(ctx context.Context, e event.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.turns = append(f.turns, e.(domain.EventTurnRecorded))
		return nil
	})

	var n int
	f.svc = session.NewService(session.Config{
		Store:         f.store,
		EventBus:      f.eb,
		Clock:         f.clock,
		NewTickerFunc: f.tickers.new,
		Metrics:       f.metrics,
		IDFunc: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	t.Cleanup(f.svc.Stop)

	return f
}

// tickers hands out manual tickers and remembers them in creation order.
type tickers struct {
	mu  sync.Mutex
	all []*clock.ManualTicker
}

func (ts *tickers) new(time.Duration) clock.Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tk := clock.NewManualTicker()
	ts.all = append(ts.all, tk)
	return tk
}

func (ts *tickers) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.all)
}

func (ts *tickers) at(i int) *clock.ManualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.all[i]
}

func (ts *tickers) last() *clock.ManualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.all[len(ts.all)-1]
}
