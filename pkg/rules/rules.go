// Package rules decides whether a player's stones form a winning line on an
// N×N board.
//
// Every function takes the positions owned by a single player. Owners are not
// distinguished here; callers filter the move history first.
package rules

import (
	"errors"
	"fmt"

	"github.com/Fekinox/xo-grid/pkg/grid"
)

// MinWinLength is the shortest run that ever counts as a win.
const MinWinLength = 3

var (
	ErrInvalidBoardSize = errors.New("board size must be at least 1")
	ErrInvalidWinLength = errors.New("win length out of range")
)

// Directions are the four axes a run can follow: horizontal, vertical,
// diagonal and anti-diagonal. Their negations are covered by scanning from
// run starts only.
var Directions = [...]grid.Pos{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
	{X: 1, Y: -1},
}

// HasWon reports whether positions contain a run of at least MinWinLength
// cells along any direction. Boards smaller than MinWinLength cannot be won.
func HasWon(positions []grid.Pos, boardSize int) (bool, error) {
	if boardSize < 1 {
		return false, ErrInvalidBoardSize
	}
	if boardSize < MinWinLength {
		return false, nil
	}
	return HasRun(positions, boardSize, MinWinLength)
}

// HasRun reports whether positions contain a run of at least winLength cells.
func HasRun(positions []grid.Pos, boardSize, winLength int) (bool, error) {
	run, err := FindRun(positions, boardSize, winLength)
	if err != nil {
		return false, err
	}
	return run != nil, nil
}

// FindRun returns the first run of at least winLength cells, ordered along
// its direction, or nil if there is none. Positions are scanned in the order
// given, so the result is deterministic for a given input.
func FindRun(positions []grid.Pos, boardSize, winLength int) ([]grid.Pos, error) {
	if boardSize < 1 {
		return nil, ErrInvalidBoardSize
	}
	if winLength < MinWinLength || winLength > boardSize {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidWinLength, winLength, MinWinLength, boardSize)
	}

	occupied := occupancy(positions, boardSize)
	for _, p := range positions {
		if !occupied[p] {
			continue
		}
		for _, d := range Directions {
			if occupied[p.Sub(d)] {
				continue
			}
			if run := runFrom(occupied, p, d); len(run) >= winLength {
				return run, nil
			}
		}
	}

	return nil, nil
}

// LongestRun returns the length of the longest run in positions, or 0 for an
// empty set.
func LongestRun(positions []grid.Pos, boardSize int) (int, error) {
	if boardSize < 1 {
		return 0, ErrInvalidBoardSize
	}

	occupied := occupancy(positions, boardSize)
	var longest int
	for p := range occupied {
		for _, d := range Directions {
			if occupied[p.Sub(d)] {
				continue
			}
			longest = max(longest, len(runFrom(occupied, p, d)))
		}
	}

	return longest, nil
}

// occupancy drops duplicates and anything outside the board.
func occupancy(positions []grid.Pos, boardSize int) map[grid.Pos]bool {
	occupied := make(map[grid.Pos]bool, len(positions))
	for _, p := range positions {
		if p.X < 0 || p.Y < 0 || p.X >= boardSize || p.Y >= boardSize {
			continue
		}
		occupied[p] = true
	}
	return occupied
}

func runFrom(occupied map[grid.Pos]bool, start, d grid.Pos) []grid.Pos {
	run := []grid.Pos{start}
	for q := start.Add(d); occupied[q]; q = q.Add(d) {
		run = append(run, q)
	}
	return run
}
