package game

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Fekinox/xo-grid/pkg/rules"
)

var ErrUnknownMode = errors.New("unknown game mode")

// Mode is a board size together with the win lengths it allows.
type Mode struct {
	Name       string `json:"name"`
	Size       int    `json:"size"`
	WinLengths []int  `json:"win_lengths"`
}

// Modes lists the playable boards, smallest first.
var Modes = []Mode{
	newMode(3),
	newMode(4),
	newMode(5),
}

func newMode(size int) Mode {
	var lengths []int
	for n := rules.MinWinLength; n <= size; n++ {
		lengths = append(lengths, n)
	}
	return Mode{
		Name:       fmt.Sprintf("%d x %d", size, size),
		Size:       size,
		WinLengths: lengths,
	}
}

func ModeBySize(size int) (Mode, bool) {
	for _, m := range Modes {
		if m.Size == size {
			return m, true
		}
	}
	return Mode{}, false
}

// ParseMode accepts "4", "4x4" or "4 x 4".
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if a, b, ok := strings.Cut(s, "x"); ok {
		if a != b {
			return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, s)
		}
		s = a
	}

	size, err := strconv.Atoi(s)
	if err != nil {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	m, ok := ModeBySize(size)
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

func ModeNames() []string {
	names := make([]string, 0, len(Modes))
	for _, m := range Modes {
		names = append(names, m.Name)
	}
	return names
}

func (m Mode) AllowsWinLength(n int) bool {
	return slices.Contains(m.WinLengths, n)
}
