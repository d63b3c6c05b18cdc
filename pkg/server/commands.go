package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
)

// BindCommands registers the game commands on a freshly connected client.
func BindCommands(cl *ClientConn, gm *GameManager) {
	cl.On("ping", func(username, body string) {
		cl.WriteTextMessage(fmt.Sprintf("pong: %q", body))
	})

	cl.On("help", func(username, body string) {
		cl.WriteTextMessage("Commands: lobbies, new [passcode], join NAME [passcode], leave, " +
			"say TEXT, info, mode SIZE [WINLEN], start, mark X Y, gamestate, restart")
	})

	cl.On("lobbies", func(username, body string) {
		gm.ListLobbies(username)
	})

	cl.On("new", func(username, body string) {
		gm.NewLobby(username, body)
	})

	cl.On("join", func(username, body string) {
		name, passcode, _ := strings.Cut(body, " ")
		if name == "" {
			cl.WriteTextMessage("Must provide lobby")
			return
		}
		gm.JoinLobby(username, name, strings.TrimSpace(passcode))
	})

	cl.On("leave", func(username, body string) {
		gm.RemoveFromLobby(username)
	})

	cl.On("say", func(username, body string) {
		gm.SayInLobby(username, body)
	})

	cl.On("info", func(username, body string) {
		gm.LobbyInfo(username)
	})

	cl.On("mode", func(username, body string) {
		if body == "" {
			cl.WriteTextMessage(fmt.Sprintf("Modes: %s", strings.Join(game.ModeNames(), ", ")))
			return
		}

		mode, winLength, err := parseModeArgs(body)
		if err != nil {
			cl.WriteTextMessage(fmt.Sprintf("Unknown mode. Modes: %s", strings.Join(game.ModeNames(), ", ")))
			return
		}
		gm.SetMode(username, mode, winLength)
	})

	cl.On("start", func(username, body string) {
		gm.StartGame(username)
	})

	cl.On("mark", func(username, body string) {
		pos, err := parsePos(body)
		if err != nil {
			cl.WriteTextMessage(err.Error())
			return
		}
		gm.Move(username, pos)
	})

	cl.On("gamestate", func(username, body string) {
		gm.GetCurrentGameState(username)
	})

	cl.On("restart", func(username, body string) {
		gm.RestartGame(username)
	})
}

func parsePos(body string) (grid.Pos, error) {
	tokens := strings.Fields(body)
	if len(tokens) < 2 {
		return grid.Pos{}, errors.New("Must provide at least two arguments")
	}

	x, err := strconv.Atoi(tokens[0])
	if err != nil {
		return grid.Pos{}, errors.New("First argument must be an integer")
	}
	y, err := strconv.Atoi(tokens[1])
	if err != nil {
		return grid.Pos{}, errors.New("Second argument must be an integer")
	}

	return grid.Pos{X: x, Y: y}, nil
}

// parseModeArgs reads "SIZE [WINLEN]" where SIZE is anything game.ParseMode
// accepts. A missing win length is returned as 0.
func parseModeArgs(body string) (game.Mode, int, error) {
	tokens := strings.Fields(body)
	if m, err := game.ParseMode(strings.Join(tokens, "")); err == nil {
		return m, 0, nil
	}
	if len(tokens) < 2 {
		return game.Mode{}, 0, game.ErrUnknownMode
	}

	winLength, err := strconv.Atoi(tokens[len(tokens)-1])
	if err != nil {
		return game.Mode{}, 0, err
	}
	m, err := game.ParseMode(strings.Join(tokens[:len(tokens)-1], ""))
	if err != nil {
		return game.Mode{}, 0, err
	}
	return m, winLength, nil
}
