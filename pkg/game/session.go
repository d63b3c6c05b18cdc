package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/Fekinox/xo-grid/pkg/grid"
	"github.com/Fekinox/xo-grid/pkg/rules"
)

type Status int

const (
	InProgress Status = iota
	XWin
	OWin
	Draw
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in progress"
	case XWin:
		return "X wins"
	case OWin:
		return "O wins"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

func (s Status) Finished() bool {
	return s != InProgress
}

var (
	ErrGameOver          = errors.New("game is over")
	ErrOutOfBounds       = errors.New("position is out of bounds")
	ErrOccupied          = errors.New("grid cell is occupied")
	ErrInvalidWinLength  = errors.New("win length not allowed for this mode")
	ErrNoRandomGenerator = errors.New("session needs a random source")
)

type Turn struct {
	Token Token    `json:"token"`
	Pos   grid.Pos `json:"pos"`
}

// Session is one game on one board. It is not safe for concurrent use.
type Session struct {
	mode      Mode
	winLength int
	rng       *rand.Rand

	board        *grid.Grid[Token]
	turns        []Turn
	first        Token
	status       Status
	winningTiles []grid.Pos
}

func NewSession(mode Mode, winLength int, rng *rand.Rand) (*Session, error) {
	if !mode.AllowsWinLength(winLength) {
		return nil, fmt.Errorf("%w: %d on %s", ErrInvalidWinLength, winLength, mode.Name)
	}
	if rng == nil {
		return nil, ErrNoRandomGenerator
	}

	s := &Session{
		mode:      mode,
		winLength: winLength,
		rng:       rng,
	}
	s.Restart()

	return s, nil
}

// Restart clears the board and draws a new starting token.
func (s *Session) Restart() {
	s.board = grid.NewGrid(s.mode.Size, s.mode.Size, NoToken)
	s.turns = nil
	s.status = InProgress
	s.winningTiles = nil
	s.first = X
	if s.rng.Intn(2) == 1 {
		s.first = O
	}
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) WinLength() int {
	return s.winLength
}

func (s *Session) Status() Status {
	return s.status
}

// Winner is NoToken unless the game was won.
func (s *Session) Winner() Token {
	switch s.status {
	case XWin:
		return X
	case OWin:
		return O
	default:
		return NoToken
	}
}

func (s *Session) WinningTiles() []grid.Pos {
	return s.winningTiles
}

func (s *Session) Turns() []Turn {
	return append([]Turn(nil), s.turns...)
}

func (s *Session) LastTurn() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// CurrentToken is the token allowed to move next.
func (s *Session) CurrentToken() Token {
	if last, ok := s.LastTurn(); ok {
		return last.Token.Other()
	}
	return s.first
}

// Positions returns every cell played by t, in move order.
func (s *Session) Positions(t Token) []grid.Pos {
	var ps []grid.Pos
	for _, turn := range s.turns {
		if turn.Token == t {
			ps = append(ps, turn.Pos)
		}
	}
	return ps
}

func (s *Session) At(pos grid.Pos) Token {
	t, _ := s.board.Get(pos.X, pos.Y)
	return t
}

// Play places the current token at pos and evaluates the board for the
// player who just moved.
func (s *Session) Play(pos grid.Pos) (Turn, error) {
	if s.status.Finished() {
		return Turn{}, ErrGameOver
	}
	v, ok := s.board.Get(pos.X, pos.Y)
	if !ok {
		return Turn{}, fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	if v != NoToken {
		return Turn{}, fmt.Errorf("%w: %v", ErrOccupied, pos)
	}

	turn := Turn{Token: s.CurrentToken(), Pos: pos}

	// checked before anything is written so a failure leaves the board alone
	run, err := rules.FindRun(append(s.Positions(turn.Token), pos), s.mode.Size, s.winLength)
	if err != nil {
		return Turn{}, err
	}

	s.board.Set(pos.X, pos.Y, turn.Token)
	s.turns = append(s.turns, turn)
	if run != nil {
		s.winningTiles = run
		if turn.Token == X {
			s.status = XWin
		} else {
			s.status = OWin
		}
		return turn, nil
	}

	if s.board.Count(NoToken) == 0 {
		s.status = Draw
	}

	return turn, nil
}

// Rows renders the board one string per row.
func (s *Session) Rows() []string {
	var res []string
	for y := 0; y < s.board.Height(); y++ {
		var cur strings.Builder
		for x := 0; x < s.board.Width(); x++ {
			cur.WriteString(s.board.MustGet(x, y).String())
		}
		res = append(res, cur.String())
	}

	return res
}
