package game

import "strings"

// Token is the mark a player places on the board.
type Token int8

const (
	NoToken Token = iota
	X
	O
)

func ParseToken(s string) Token {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return X
	case "O":
		return O
	default:
		return NoToken
	}
}

// Other returns the opposing token. NoToken has no opponent.
func (t Token) Other() Token {
	switch t {
	case X:
		return O
	case O:
		return X
	default:
		return NoToken
	}
}

func (t Token) String() string {
	switch t {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return "."
	}
}

func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(text []byte) error {
	*t = ParseToken(string(text))
	return nil
}
