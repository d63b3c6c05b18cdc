package message

import (
	"encoding/json"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
)

// Message is a single websocket frame. Type is one of the websocket message
// type constants.
type Message struct {
	Type int
	Data []byte
}

const KindBoard = "board"

// BoardState is the JSON document pushed to players after every change to
// their lobby's game.
type BoardState struct {
	Kind         string            `json:"kind"`
	Lobby        string            `json:"lobby"`
	Mode         string            `json:"mode"`
	Size         int               `json:"size"`
	WinLength    int               `json:"win_length"`
	Rows         []string          `json:"rows"`
	Turn         game.Token        `json:"turn"`
	Status       string            `json:"status"`
	Winner       game.Token        `json:"winner"`
	WinningTiles []grid.Pos        `json:"winning_tiles,omitempty"`
	Players      map[string]string `json:"players,omitempty"`
}

func NewBoardState(lobby string, s *game.Session, players map[game.Token]string) BoardState {
	bs := BoardState{
		Kind:         KindBoard,
		Lobby:        lobby,
		Mode:         s.Mode().Name,
		Size:         s.Mode().Size,
		WinLength:    s.WinLength(),
		Rows:         s.Rows(),
		Turn:         s.CurrentToken(),
		Status:       s.Status().String(),
		Winner:       s.Winner(),
		WinningTiles: s.WinningTiles(),
	}
	if len(players) > 0 {
		bs.Players = make(map[string]string, len(players))
		for tok, user := range players {
			bs.Players[tok.String()] = user
		}
	}
	return bs
}

// ParseBoardState decodes data if it is a board document. ok is false for
// anything else, including plain text messages.
func ParseBoardState(data []byte) (BoardState, bool) {
	if len(data) == 0 || data[0] != '{' {
		return BoardState{}, false
	}
	var bs BoardState
	if err := json.Unmarshal(data, &bs); err != nil || bs.Kind != KindBoard {
		return BoardState{}, false
	}
	return bs, true
}
