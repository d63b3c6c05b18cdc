package server

import (
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
	"github.com/Fekinox/xo-grid/pkg/message"
)

// recorder keeps everything sent to each user.
type recorder struct {
	mu     sync.Mutex
	texts  map[string][]string
	states map[string][]message.BoardState
}

func newRecorder() *recorder {
	return &recorder{
		texts:  make(map[string][]string),
		states: make(map[string][]message.BoardState),
	}
}

func (r *recorder) BroadcastText(text string, users ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		r.texts[u] = append(r.texts[u], text)
	}
}

func (r *recorder) BroadcastJSON(v any, users ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, _ := json.Marshal(v)
	bs, ok := message.ParseBoardState(data)
	if !ok {
		return
	}
	for _, u := range users {
		r.states[u] = append(r.states[u], bs)
	}
}

func (r *recorder) last(user string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.texts[user]
	if len(ts) == 0 {
		return ""
	}
	return ts[len(ts)-1]
}

func (r *recorder) saw(user, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.texts[user] {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func (r *recorder) lastState(user string) message.BoardState {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss := r.states[user]
	if len(ss) == 0 {
		return message.BoardState{}
	}
	return ss[len(ss)-1]
}

func newTestManager() (*GameManager, *recorder) {
	rec := newRecorder()
	gm := NewGameManager(rec, game.Modes[0], 3, rand.New(rand.NewSource(42)))
	gm.passcodeCost = bcrypt.MinCost
	return gm, rec
}

// lobbyWith sets up a lobby hosted by alice with bob joined.
func lobbyWith(t *testing.T, gm *GameManager) string {
	t.Helper()
	gm.NewLobby("alice", "")
	name := gm.UserLobbies["alice"]
	require.NotEmpty(t, name)
	gm.JoinLobby("bob", name, "")
	require.Equal(t, name, gm.UserLobbies["bob"])
	return name
}

// mover returns whoever is due to move and the other player.
func mover(gm *GameManager, lobby string) (string, string) {
	lb := gm.Lobbies[lobby]
	tok := lb.Session.CurrentToken()
	return lb.Players[tok], lb.Players[tok.Other()]
}

func TestLobbyLifecycle(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)

	assert.True(t, rec.saw("alice", "bob is joining the lobby"))
	assert.True(t, rec.saw("bob", "alice (host)"))

	gm.JoinLobby("carol", name, "")
	assert.Equal(t, "Lobby "+name+" is full", rec.last("carol"))

	gm.RemoveFromLobby("alice")
	assert.Equal(t, "You have left the lobby", rec.last("alice"))
	assert.True(t, rec.saw("bob", "You are now the host"))
	assert.Equal(t, "bob", gm.Lobbies[name].Host)

	gm.RemoveFromLobby("bob")
	assert.Empty(t, gm.Lobbies)
	assert.Empty(t, gm.UserLobbies)

	gm.RemoveFromLobby("bob")
	assert.Equal(t, "You are not in a lobby", rec.last("bob"))
}

func TestLobbyPasscode(t *testing.T) {
	gm, rec := newTestManager()
	gm.NewLobby("alice", "hunter2")
	name := gm.UserLobbies["alice"]

	gm.JoinLobby("bob", name, "wrong")
	assert.Equal(t, "Wrong passcode for lobby "+name, rec.last("bob"))
	assert.NotContains(t, gm.UserLobbies, "bob")

	gm.ListLobbies("bob")
	assert.Contains(t, rec.last("bob"), "locked")

	gm.JoinLobby("bob", strings.ToLower(name), "hunter2")
	assert.Equal(t, name, gm.UserLobbies["bob"])
}

func TestStartGameRequiresHostAndOpponent(t *testing.T) {
	gm, rec := newTestManager()
	gm.NewLobby("alice", "")
	gm.StartGame("alice")
	assert.Equal(t, "Waiting for an opponent", rec.last("alice"))

	name := gm.UserLobbies["alice"]
	gm.JoinLobby("bob", name, "")
	gm.StartGame("bob")
	assert.Equal(t, "Only the host can start the game", rec.last("bob"))

	gm.StartGame("alice")
	lb := gm.Lobbies[name]
	require.NotNil(t, lb.Session)
	assert.Equal(t, "alice", lb.Players[game.X])
	assert.Equal(t, "bob", lb.Players[game.O])

	st := rec.lastState("bob")
	assert.Equal(t, name, st.Lobby)
	assert.Equal(t, []string{"...", "...", "..."}, st.Rows)
}

func TestMoveTurnOrderAndWin(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)
	gm.StartGame("alice")

	first, second := mover(gm, name)
	gm.Move(second, grid.Pos{X: 0, Y: 0})
	assert.Equal(t, "It is not your turn", rec.last(second))

	gm.Move(first, grid.Pos{X: 0, Y: 0})
	gm.Move(second, grid.Pos{X: 0, Y: 0})
	assert.Contains(t, rec.last(second), "Cannot play there")

	gm.Move(second, grid.Pos{X: 0, Y: 1})
	gm.Move(first, grid.Pos{X: 1, Y: 1})
	gm.Move(second, grid.Pos{X: 0, Y: 2})
	gm.Move(first, grid.Pos{X: 2, Y: 2})

	assert.True(t, rec.saw(second, first+" wins!"))

	// the round restarts on its own
	lb := gm.Lobbies[name]
	assert.Equal(t, game.InProgress, lb.Session.Status())
	assert.Empty(t, lb.Session.Turns())
	assert.Equal(t, []string{"...", "...", "..."}, rec.lastState(first).Rows)
}

func TestSetMode(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)

	gm.SetMode("bob", game.Modes[1], 4)
	assert.Equal(t, "Only the host can change the mode", rec.last("bob"))

	gm.SetMode("alice", game.Modes[0], 4)
	assert.Equal(t, "3 x 3 allows 3 in a row", rec.last("alice"))

	gm.SetMode("alice", game.Modes[2], 0)
	assert.Equal(t, 3, gm.Lobbies[name].WinLength)

	gm.SetMode("alice", game.Modes[2], 4)
	assert.Equal(t, "Mode set to 5 x 5, 4 in a row", rec.last("bob"))

	gm.StartGame("alice")
	assert.Equal(t, 5, rec.lastState("bob").Size)
	assert.Equal(t, 4, rec.lastState("bob").WinLength)

	first, _ := mover(gm, name)
	gm.Move(first, grid.Pos{X: 2, Y: 2})
	gm.SetMode("alice", game.Modes[0], 3)
	assert.Equal(t, "Cannot change the mode during a game", rec.last("alice"))
	gm.StartGame("alice")
	assert.Equal(t, "A game is already running", rec.last("alice"))
}

func TestSetModeAfterFinishedRound(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)
	gm.StartGame("alice")

	first, second := mover(gm, name)
	gm.Move(first, grid.Pos{X: 0, Y: 0})
	gm.Move(second, grid.Pos{X: 0, Y: 1})
	gm.Move(first, grid.Pos{X: 1, Y: 0})
	gm.Move(second, grid.Pos{X: 1, Y: 1})
	gm.Move(first, grid.Pos{X: 2, Y: 0})
	require.True(t, rec.saw(second, first+" wins!"))

	gm.SetMode("alice", game.Modes[1], 4)
	assert.Equal(t, "Mode set to 4 x 4, 4 in a row", rec.last("bob"))
	assert.Nil(t, gm.Lobbies[name].Session)

	gm.StartGame("alice")
	st := rec.lastState("bob")
	assert.Equal(t, 4, st.Size)
	assert.Equal(t, 4, st.WinLength)
}

func TestLeavingAbandonsGame(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)
	gm.StartGame("alice")

	gm.DropUser("bob")
	assert.True(t, rec.saw("alice", "The game was abandoned"))
	assert.Nil(t, gm.Lobbies[name].Session)

	// a user outside any lobby is ignored quietly
	gm.DropUser("bob")
	assert.Equal(t, "You have left the lobby", rec.last("bob"))
}

func TestRestartAndGameState(t *testing.T) {
	gm, rec := newTestManager()
	name := lobbyWith(t, gm)

	gm.GetCurrentGameState("bob")
	assert.Equal(t, "No game is running", rec.last("bob"))

	gm.StartGame("alice")
	first, _ := mover(gm, name)
	gm.Move(first, grid.Pos{X: 1, Y: 1})

	gm.GetCurrentGameState("bob")
	assert.Equal(t, ".", rec.lastState("bob").Rows[1][0:1])
	assert.NotEqual(t, ".", rec.lastState("bob").Rows[1][1:2])

	gm.RestartGame("bob")
	assert.Equal(t, "Only the host can restart the game", rec.last("bob"))

	gm.RestartGame("alice")
	assert.True(t, rec.saw("bob", "The game was restarted"))
	assert.Equal(t, "...", rec.lastState("bob").Rows[1])
}

func TestParseModeArgs(t *testing.T) {
	cases := map[string][2]int{
		"4":       {4, 0},
		"4x4":     {4, 0},
		"4 x 4":   {4, 0},
		"4 3":     {4, 3},
		"4x4 4":   {4, 4},
		"5 x 5 5": {5, 5},
	}
	for in, want := range cases {
		m, wl, err := parseModeArgs(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, [2]int{m.Size, wl}, in)
	}

	_, _, err := parseModeArgs("9")
	assert.Error(t, err)
	_, _, err = parseModeArgs("4x4 many")
	assert.Error(t, err)
}

func TestParsePos(t *testing.T) {
	p, err := parsePos(" 2  1 ")
	require.NoError(t, err)
	assert.Equal(t, grid.Pos{X: 2, Y: 1}, p)

	_, err = parsePos("2")
	assert.Error(t, err)
	_, err = parsePos("a 1")
	assert.Error(t, err)
}
