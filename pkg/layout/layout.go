// Package layout divides a display area into the equally sized cells of a
// game board.
//
// Coordinates follow the screen convention: the origin is the top-left corner,
// X grows to the right and Y grows downward.
package layout

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidCount     = errors.New("column and row counts must be at least 1")
	ErrInvalidDimension = errors.New("display width and height must be positive and finite")
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is one board cell, described by its corners clockwise from the
// top-left.
type Rect struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

func NewRect(left, top, right, bottom float64) Rect {
	return Rect{
		TopLeft:     Point{X: left, Y: top},
		TopRight:    Point{X: right, Y: top},
		BottomRight: Point{X: right, Y: bottom},
		BottomLeft:  Point{X: left, Y: bottom},
	}
}

func (r Rect) Width() float64 {
	return r.TopRight.X - r.TopLeft.X
}

func (r Rect) Height() float64 {
	return r.BottomLeft.Y - r.TopLeft.Y
}

func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// Contains reports whether p lies inside r. The left and top edges are
// inclusive, the right and bottom edges exclusive, so a point on a shared
// edge belongs to exactly one cell.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.TopLeft.X && p.X < r.TopRight.X &&
		p.Y >= r.TopLeft.Y && p.Y < r.BottomLeft.Y
}

// Partition splits a width×height display into columns×rows equal cells,
// returned row by row, left to right.
func Partition(width, height float64, columns, rows int) ([]Rect, error) {
	if err := validate(width, height, columns, rows); err != nil {
		return nil, err
	}

	rects := make([]Rect, 0, columns*rows)
	for row := 0; row < rows; row++ {
		top := boundary(row, rows, height)
		bottom := boundary(row+1, rows, height)
		for col := 0; col < columns; col++ {
			left := boundary(col, columns, width)
			right := boundary(col+1, columns, width)
			rects = append(rects, NewRect(left, top, right, bottom))
		}
	}

	return rects, nil
}

// CellAt maps a display point back to the column and row of the cell that
// contains it. ok is false for invalid arguments or points off the display.
func CellAt(width, height float64, columns, rows int, p Point) (col, row int, ok bool) {
	if validate(width, height, columns, rows) != nil {
		return 0, 0, false
	}
	// written positively so that NaN coordinates fall outside
	if !(p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height) {
		return 0, 0, false
	}

	col = min(int(p.X/(width/float64(columns))), columns-1)
	row = min(int(p.Y/(height/float64(rows))), rows-1)

	// Division can land one cell off right at a boundary; the rectangles
	// themselves are authoritative.
	if col > 0 && p.X < boundary(col, columns, width) {
		col--
	} else if col < columns-1 && p.X >= boundary(col+1, columns, width) {
		col++
	}
	if row > 0 && p.Y < boundary(row, rows, height) {
		row--
	} else if row < rows-1 && p.Y >= boundary(row+1, rows, height) {
		row++
	}

	return col, row, true
}

// boundary is computed from the index instead of accumulated so that
// neighbouring cells share exactly the same coordinate.
func boundary(i, count int, dimension float64) float64 {
	if i == count {
		return dimension
	}
	return float64(i) * (dimension / float64(count))
}

func validate(width, height float64, columns, rows int) error {
	if columns < 1 || rows < 1 {
		return fmt.Errorf("%w: got %d columns, %d rows", ErrInvalidCount, columns, rows)
	}
	if !positiveFinite(width) || !positiveFinite(height) {
		return fmt.Errorf("%w: got %gx%g", ErrInvalidDimension, width, height)
	}
	return nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}
