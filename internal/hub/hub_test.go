// internal/hub/hub_test.go
package hub

import (
	"encoding/json"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string         `json:"type"`
	ID      uuid.UUID      `json:"id"`
	Room    string         `json:"room"`
	Message string         `json:"message"`
	State   *game.Snapshot `json:"state"`
}

// recordingSink captures every round the hub reports.
type recordingSink struct {
	mu      sync.Mutex
	results []game.RoundResult
}

func (s *recordingSink) RecordRound(res game.RoundResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *recordingSink) all() []game.RoundResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]game.RoundResult(nil), s.results...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupTestHub(t *testing.T, sink RoundSink) *Hub {
	t.Helper()
	return NewHub(Config{
		Logger:      quietLogger(),
		AdminSecret: "hunter2",
		Sink:        sink,
		NewRand:     func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	})
}

func connect(t *testing.T, h *Hub, buffer int) *Connection {
	t.Helper()
	conn := NewConnection(uuid.Nil, buffer, nil)
	h.Register(conn)
	return conn
}

// drain reads every frame currently queued on conn.
func drain(t *testing.T, conn *Connection) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data, ok := <-conn.Out:
			if !ok {
				return out
			}
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func lastState(t *testing.T, conn *Connection) game.Snapshot {
	t.Helper()
	frames := drain(t, conn)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == TypeState {
			return *frames[i].State
		}
	}
	t.Fatalf("no state frame queued for connection %s", conn.ID)
	return game.Snapshot{}
}

func join(t *testing.T, h *Hub, conn *Connection, name, room string) uuid.UUID {
	t.Helper()
	h.Dispatch(conn.ID, JoinCommand{Name: name, Room: room})
	frames := drain(t, conn)
	require.NotEmpty(t, frames)
	require.Equal(t, TypeWelcome, frames[0].Type)
	return frames[0].ID
}

func TestJoinSendsWelcomeThenState(t *testing.T) {
	h := setupTestHub(t, nil)
	conn := connect(t, h, 8)

	h.Dispatch(conn.ID, JoinCommand{Name: "Alice", Room: "r"})

	frames := drain(t, conn)
	require.Len(t, frames, 2)
	assert.Equal(t, TypeWelcome, frames[0].Type)
	assert.Equal(t, "r", frames[0].Room)
	assert.Equal(t, TypeState, frames[1].Type)
	require.Len(t, frames[1].State.Players, 1)
	assert.Equal(t, frames[0].ID, frames[1].State.Players[0].ID)
	assert.Equal(t, "r", frames[1].State.Room)
}

func TestJoinWithoutRoomUsesDefault(t *testing.T) {
	h := setupTestHub(t, nil)
	conn := connect(t, h, 8)

	h.Dispatch(conn.ID, JoinCommand{Name: "Alice"})

	frames := drain(t, conn)
	require.NotEmpty(t, frames)
	assert.Equal(t, game.DefaultRoomName, frames[0].Room)
}

func TestEndToEndRound(t *testing.T) {
	sink := &recordingSink{}
	h := setupTestHub(t, sink)
	alice := connect(t, h, 32)
	bob := connect(t, h, 32)

	aliceID := join(t, h, alice, "Alice", "r")
	bobID := join(t, h, bob, "Bob", "r")
	drain(t, alice)

	h.Dispatch(alice.ID, StartGameCommand{})
	s := lastState(t, bob)
	assert.Equal(t, game.PhaseCue1, s.Phase)
	require.NotNil(t, s.CueGiver)
	assert.Equal(t, aliceID, *s.CueGiver)

	h.Dispatch(alice.ID, LockCue1Command{Cue: "sky"})
	assert.Equal(t, game.PhaseGuess1, lastState(t, bob).Phase)

	h.Dispatch(bob.ID, GuessCommand{Cell: 10})
	assert.Equal(t, game.PhaseCue2, lastState(t, bob).Phase)

	h.Dispatch(alice.ID, LockCue2Command{Cue2: "blue"})
	assert.Equal(t, game.PhaseGuess2, lastState(t, bob).Phase)

	h.Dispatch(bob.ID, GuessCommand{Cell: 10})
	s = lastState(t, bob)
	assert.Equal(t, game.PhaseReveal, s.Phase)
	require.NotNil(t, s.Target)

	scores := map[uuid.UUID]int{}
	for _, p := range s.Players {
		scores[p.ID] = p.Score
	}
	assert.Equal(t, 0, scores[aliceID])
	assert.Equal(t, game.Points(10, *s.Target, s.Cols), scores[bobID])

	// alice saw the same final snapshot
	assert.Equal(t, s, lastState(t, alice))

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, "r", results[0].Room)
	assert.Equal(t, *s.Target, results[0].Target)
	assert.Equal(t, "sky", results[0].Cue1)
	assert.Equal(t, "blue", results[0].Cue2)
}

func TestRevealWaitsForEverySecondGuess(t *testing.T) {
	h := setupTestHub(t, nil)
	conns := []*Connection{connect(t, h, 64), connect(t, h, 64), connect(t, h, 64)}
	for i, c := range conns {
		join(t, h, c, []string{"A", "B", "C"}[i], "r")
	}

	h.Dispatch(conns[0].ID, StartGameCommand{})
	h.Dispatch(conns[0].ID, LockCue1Command{Cue: "warm"})
	h.Dispatch(conns[1].ID, GuessCommand{Cell: 1})
	assert.Equal(t, game.PhaseGuess1, lastState(t, conns[0]).Phase)
	h.Dispatch(conns[2].ID, GuessCommand{Cell: 2})
	assert.Equal(t, game.PhaseCue2, lastState(t, conns[0]).Phase)

	h.Dispatch(conns[0].ID, LockCue2Command{Cue2: "red"})
	h.Dispatch(conns[1].ID, GuessCommand{Cell: 3})
	s := lastState(t, conns[0])
	assert.Equal(t, game.PhaseGuess2, s.Phase)
	assert.Len(t, s.GuessedTwice, 1)

	// a repeated guess from the same player does not count twice
	h.Dispatch(conns[1].ID, GuessCommand{Cell: 4})
	assert.Equal(t, game.PhaseGuess2, lastState(t, conns[0]).Phase)

	h.Dispatch(conns[2].ID, GuessCommand{Cell: 5})
	assert.Equal(t, game.PhaseReveal, lastState(t, conns[0]).Phase)
}

func TestTargetOnlyBroadcastInReveal(t *testing.T) {
	h := setupTestHub(t, nil)
	alice := connect(t, h, 128)
	bob := connect(t, h, 128)
	join(t, h, alice, "Alice", "r")
	join(t, h, bob, "Bob", "r")

	var raw [][]byte
	collect := func() {
		for {
			select {
			case data := <-bob.Out:
				raw = append(raw, data)
			default:
				return
			}
		}
	}

	for round := 0; round < 2; round++ {
		if round == 0 {
			h.Dispatch(alice.ID, StartGameCommand{})
		} else {
			h.Dispatch(alice.ID, NextRoundCommand{})
		}
		cg := alice
		guesser := bob
		if round == 1 {
			cg, guesser = bob, alice
		}
		h.Dispatch(cg.ID, LockCue1Command{Cue: "a"})
		h.Dispatch(guesser.ID, GuessCommand{Cell: 7})
		h.Dispatch(cg.ID, LockCue2Command{Cue2: "b"})
		h.Dispatch(guesser.ID, GuessCommand{Cell: 8})
		collect()
	}

	reveals := 0
	for _, data := range raw {
		var msg struct {
			Type  string                     `json:"type"`
			State map[string]json.RawMessage `json:"state"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type != TypeState {
			continue
		}
		var phase game.Phase
		require.NoError(t, json.Unmarshal(msg.State["phase"], &phase))
		_, hasTarget := msg.State["target"]
		if phase == game.PhaseReveal {
			reveals++
			assert.True(t, hasTarget, "reveal snapshot must carry the target")
		} else {
			assert.False(t, hasTarget, "target leaked in phase %s", phase)
		}
	}
	assert.Equal(t, 2, reveals)
}

func TestDisconnectRemovesPlayerAndAdvances(t *testing.T) {
	sink := &recordingSink{}
	h := setupTestHub(t, sink)
	a := connect(t, h, 64)
	b := connect(t, h, 64)
	c := connect(t, h, 64)
	join(t, h, a, "A", "r")
	join(t, h, b, "B", "r")
	cID := join(t, h, c, "C", "r")

	h.Dispatch(a.ID, StartGameCommand{})
	h.Dispatch(a.ID, LockCue1Command{Cue: "x"})
	h.Dispatch(a.ID, LockCue2Command{Cue2: "y"})
	h.Dispatch(c.ID, GuessCommand{Cell: 9})
	h.Dispatch(b.ID, GuessCommand{Cell: 9})
	require.Equal(t, game.PhaseReveal, lastState(t, a).Phase)

	h.Dispatch(a.ID, NextRoundCommand{})
	h.Dispatch(b.ID, LockCue1Command{Cue: "x"})
	h.Dispatch(c.ID, GuessCommand{Cell: 1})
	require.Equal(t, game.PhaseGuess1, lastState(t, a).Phase)

	// C guessed and leaves; A still owes a guess so the phase holds
	h.Disconnect(c.ID)
	s := lastState(t, a)
	assert.Equal(t, game.PhaseGuess1, s.Phase)
	assert.Len(t, s.Players, 2)
	for _, p := range s.Players {
		assert.NotEqual(t, cID, p.ID)
	}
	assert.Empty(t, s.GuessedOnce, "stale guess from a departed player")

	h.Dispatch(a.ID, GuessCommand{Cell: 2})
	assert.Equal(t, game.PhaseCue2, lastState(t, b).Phase)

	_, open := <-c.Out
	for open {
		_, open = <-c.Out
	}
	assert.Len(t, sink.all(), 1)
}

func TestDisconnectWithoutJoinIsNoop(t *testing.T) {
	h := setupTestHub(t, nil)
	watcher := connect(t, h, 8)
	join(t, h, watcher, "W", "")
	stranger := connect(t, h, 8)

	h.Disconnect(stranger.ID)
	h.Disconnect(stranger.ID)

	assert.Empty(t, drain(t, watcher))
	assert.Equal(t, 1, h.Stats().Conns)
}

func TestCommandsBeforeJoinAreIgnored(t *testing.T) {
	h := setupTestHub(t, nil)
	watcher := connect(t, h, 8)
	join(t, h, watcher, "W", "")
	stranger := connect(t, h, 8)

	h.Dispatch(stranger.ID, StartGameCommand{})
	h.Dispatch(stranger.ID, GuessCommand{Cell: 3})

	assert.Empty(t, drain(t, stranger))
	assert.Empty(t, drain(t, watcher))
	snap, ok := h.Snapshot("")
	require.True(t, ok)
	assert.Equal(t, game.PhaseLobby, snap.Phase)
}

func TestRejoinReplacesPlayer(t *testing.T) {
	h := setupTestHub(t, nil)
	watcher := connect(t, h, 16)
	join(t, h, watcher, "W", "r")
	conn := connect(t, h, 16)
	first := join(t, h, conn, "Old", "r")
	drain(t, watcher)

	second := join(t, h, conn, "New", "r")

	assert.NotEqual(t, first, second)
	s := lastState(t, watcher)
	require.Len(t, s.Players, 2)
	assert.Equal(t, "New", s.Players[1].Name)
}

func TestRoomsAreIsolated(t *testing.T) {
	h := setupTestHub(t, nil)
	a := connect(t, h, 16)
	b := connect(t, h, 16)
	join(t, h, a, "A", "one")
	join(t, h, b, "B", "two")

	h.Dispatch(a.ID, StartGameCommand{})

	assert.Empty(t, drain(t, b))
	assert.Equal(t, game.PhaseCue1, lastState(t, a).Phase)
	snap, ok := h.Snapshot("two")
	require.True(t, ok)
	assert.Equal(t, game.PhaseLobby, snap.Phase)
}

func TestAdminResetRequiresSecret(t *testing.T) {
	h := setupTestHub(t, nil)
	a := connect(t, h, 16)
	join(t, h, a, "A", "r")
	h.Dispatch(a.ID, StartGameCommand{})
	drain(t, a)

	h.Dispatch(a.ID, AdminResetCommand{Secret: "wrong", Room: "r"})
	assert.Empty(t, drain(t, a))

	h.Dispatch(a.ID, AdminResetCommand{Secret: "hunter2", Room: "r"})
	s := lastState(t, a)
	assert.Equal(t, game.PhaseLobby, s.Phase)
	assert.Empty(t, s.Players)

	// the socket was unseated along with its player
	h.Dispatch(a.ID, StartGameCommand{})
	assert.Empty(t, drain(t, a))
}

func TestAdminKick(t *testing.T) {
	h := setupTestHub(t, nil)
	a := connect(t, h, 16)
	b := connect(t, h, 16)
	join(t, h, a, "A", "r")
	bID := join(t, h, b, "B", "r")
	drain(t, a)

	h.Dispatch(a.ID, AdminKickCommand{Secret: "nope", Player: bID, Room: "r"})
	assert.Empty(t, drain(t, a))

	h.Dispatch(a.ID, AdminKickCommand{Secret: "hunter2", Player: bID, Room: "r"})
	s := lastState(t, a)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "A", s.Players[0].Name)

	// kicked socket got the final view and is no longer seated
	assert.Len(t, lastState(t, b).Players, 1)
	h.Dispatch(b.ID, StartGameCommand{})
	assert.Empty(t, drain(t, a))

	assert.False(t, h.KickPlayer("r", bID))
}

func TestEmptyAdminSecretDisablesAdmin(t *testing.T) {
	h := NewHub(Config{Logger: quietLogger()})
	assert.False(t, h.CheckAdminSecret(""))
	assert.False(t, h.CheckAdminSecret("anything"))
}

func TestSendErrorOnlyReachesOneConnection(t *testing.T) {
	h := setupTestHub(t, nil)
	a := connect(t, h, 8)
	b := connect(t, h, 8)
	join(t, h, a, "A", "r")
	join(t, h, b, "B", "r")
	drain(t, a)

	h.SendError(b.ID, "bad json: boom")

	assert.Empty(t, drain(t, a))
	frames := drain(t, b)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeError, frames[0].Type)
	assert.Equal(t, "bad json: boom", frames[0].Message)
}

func TestSlowConnectionIsCancelled(t *testing.T) {
	h := setupTestHub(t, nil)
	cancelled := 0
	slow := NewConnection(uuid.Nil, 1, func() { cancelled++ })
	h.Register(slow)
	fast := connect(t, h, 64)

	h.Dispatch(slow.ID, JoinCommand{Name: "Slow", Room: "r"})
	join(t, h, fast, "Fast", "r")
	h.Dispatch(fast.ID, StartGameCommand{})

	assert.GreaterOrEqual(t, cancelled, 1)
	assert.Equal(t, game.PhaseCue1, lastState(t, fast).Phase)
}

func TestAllMembersSeeSameSequence(t *testing.T) {
	h := setupTestHub(t, nil)
	const n = 4
	conns := make([]*Connection, n)
	for i := range conns {
		conns[i] = connect(t, h, 1024)
		join(t, h, conns[i], "p", "r")
	}
	for _, c := range conns {
		drain(t, c)
	}
	h.Dispatch(conns[0].ID, StartGameCommand{})
	h.Dispatch(conns[0].ID, LockCue1Command{Cue: "c"})

	var wg sync.WaitGroup
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(c *Connection, cell int) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				h.Dispatch(c.ID, GuessCommand{Cell: cell + k})
			}
		}(conns[i], i*10)
	}
	wg.Wait()

	seqs := make([][]game.Snapshot, n)
	for i, c := range conns {
		for _, f := range drain(t, c) {
			if f.Type == TypeState {
				seqs[i] = append(seqs[i], *f.State)
			}
		}
	}
	require.NotEmpty(t, seqs[0])
	for i := 1; i < n; i++ {
		assert.Equal(t, seqs[0], seqs[i])
	}
}

func TestStatsCountsMembers(t *testing.T) {
	h := setupTestHub(t, nil)
	a := connect(t, h, 8)
	join(t, h, a, "A", "r")
	connect(t, h, 8)

	stats := h.Stats()
	assert.Equal(t, 2, stats.Conns)
	require.Contains(t, stats.Rooms, "r")
	require.Contains(t, stats.Rooms, game.DefaultRoomName)
	assert.Equal(t, 1, stats.Rooms["r"].Members)
	assert.Len(t, stats.Rooms["r"].Players, 1)
}
