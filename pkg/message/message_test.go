package message

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
)

func TestBoardStateFromSession(t *testing.T) {
	s, err := game.NewSession(game.Modes[1], 3, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	first := s.CurrentToken()
	_, err = s.Play(grid.Pos{X: 1, Y: 2})
	require.NoError(t, err)

	bs := NewBoardState("ABCD", s, map[game.Token]string{game.X: "alice", game.O: "bob"})
	data, err := json.Marshal(bs)
	require.NoError(t, err)

	got, ok := ParseBoardState(data)
	require.True(t, ok)
	assert.Equal(t, "ABCD", got.Lobby)
	assert.Equal(t, 4, got.Size)
	assert.Equal(t, first.Other(), got.Turn)
	assert.Equal(t, "."+first.String()+"..", got.Rows[2])
	assert.Equal(t, "alice", got.Players["X"])
	assert.Equal(t, game.NoToken, got.Winner)
}

func TestParseBoardStateRejectsText(t *testing.T) {
	_, ok := ParseBoardState([]byte("hello"))
	assert.False(t, ok)
	_, ok = ParseBoardState([]byte(`{"kind":"chat"}`))
	assert.False(t, ok)
	_, ok = ParseBoardState(nil)
	assert.False(t, ok)
}
