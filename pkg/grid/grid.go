package grid

import "fmt"

// Grid is a fixed-size, row-major board of cells.
type Grid[T comparable] struct {
	data   []T
	width  int
	height int
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(o Pos) Pos {
	return Pos{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Pos) Sub(o Pos) Pos {
	return Pos{X: p.X - o.X, Y: p.Y - o.Y}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func NewGrid[T comparable](width, height int, value T) *Grid[T] {
	g := &Grid[T]{
		data:   make([]T, width*height),
		width:  width,
		height: height,
	}

	for i := 0; i < width*height; i++ {
		g.data[i] = value
	}

	return g
}

func (g *Grid[T]) Width() int {
	return g.width
}

func (g *Grid[T]) Height() int {
	return g.height
}

func (g *Grid[T]) InBounds(x, y int) bool {
	return 0 <= x && 0 <= y && g.width > x && g.height > y
}

func (g *Grid[T]) Get(x, y int) (T, bool) {
	if !g.InBounds(x, y) {
		return *new(T), false
	}

	return g.data[x+y*g.width], true
}

func (g *Grid[T]) MustGet(x, y int) T {
	return g.data[x+y*g.width]
}

func (g *Grid[T]) Set(x, y int, value T) {
	if !g.InBounds(x, y) {
		return
	}

	g.data[x+y*g.width] = value
}

// Fill overwrites every cell with value.
func (g *Grid[T]) Fill(value T) {
	for i := range g.data {
		g.data[i] = value
	}
}

// Count returns how many cells hold value.
func (g *Grid[T]) Count(value T) int {
	var n int
	for _, v := range g.data {
		if v == value {
			n++
		}
	}
	return n
}
