package main

import (
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
	"github.com/Fekinox/xo-grid/pkg/layout"
	"github.com/Fekinox/xo-grid/pkg/message"
)

var tokenStyles = map[game.Token]tcell.Style{
	game.X: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	game.O: tcell.StyleDefault.Foreground(tcell.ColorBlue).Bold(true),
}

var (
	lineStyle    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	winningStyle = tcell.StyleDefault.Background(tcell.ColorDarkGreen)
)

// BoardUI draws the lobby's board into a tview box, one partition cell per
// board field, and turns clicks back into board positions.
type BoardUI struct {
	Box *tview.Box

	mu    sync.Mutex
	state *message.BoardState

	// OnMark is called with the clicked field.
	OnMark func(pos grid.Pos)
}

func NewBoardUI() *BoardUI {
	b := &BoardUI{
		Box: tview.NewBox(),
	}
	b.Box.SetBorder(true).SetTitle(" board ")
	b.Box.SetDrawFunc(b.draw)
	b.Box.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action != tview.MouseLeftClick {
			return action, event
		}
		if pos, ok := b.fieldAt(event.Position()); ok && b.OnMark != nil {
			b.OnMark(pos)
			return tview.MouseConsumed, nil
		}
		return action, event
	})
	return b
}

func (b *BoardUI) SetState(bs message.BoardState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = &bs
}

func (b *BoardUI) State() (message.BoardState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == nil {
		return message.BoardState{}, false
	}
	return *b.state, true
}

func (b *BoardUI) fieldAt(x, y int) (grid.Pos, bool) {
	st, ok := b.State()
	if !ok || !validBoard(st) {
		return grid.Pos{}, false
	}

	bx, by, bw, bh := b.Box.GetInnerRect()
	// aim for the middle of the terminal cell that was clicked
	p := layout.Point{X: float64(x-bx) + 0.5, Y: float64(y-by) + 0.5}
	col, row, ok := layout.CellAt(float64(bw), float64(bh), st.Size, st.Size, p)
	if !ok {
		return grid.Pos{}, false
	}
	return grid.Pos{X: col, Y: row}, true
}

func (b *BoardUI) draw(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	// the border is drawn by the box; work inside it
	ix, iy, iw, ih := x+1, y+1, width-2, height-2

	st, ok := b.State()
	if !ok || !validBoard(st) {
		drawText(screen, ix, iy, iw, "no game yet, type help", lineStyle)
		return ix, iy, iw, ih
	}

	rects, err := layout.Partition(float64(iw), float64(ih), st.Size, st.Size)
	if err != nil {
		return ix, iy, iw, ih
	}

	winning := make(map[grid.Pos]bool, len(st.WinningTiles))
	for _, p := range st.WinningTiles {
		winning[p] = true
	}

	for i, r := range rects {
		col, row := i%st.Size, i/st.Size
		x0 := ix + int(math.Round(r.TopLeft.X))
		y0 := iy + int(math.Round(r.TopLeft.Y))
		x1 := ix + int(math.Round(r.BottomRight.X))
		y1 := iy + int(math.Round(r.BottomRight.Y))

		if winning[grid.Pos{X: col, Y: row}] {
			for yy := y0; yy < y1; yy++ {
				for xx := x0; xx < x1; xx++ {
					screen.SetContent(xx, yy, ' ', nil, winningStyle)
				}
			}
		}

		// separators on the right and bottom edge of inner cells
		if col < st.Size-1 {
			for yy := y0; yy < y1; yy++ {
				screen.SetContent(x1-1, yy, tview.BoxDrawingsLightVertical, nil, lineStyle)
			}
		}
		if row < st.Size-1 {
			for xx := x0; xx < x1; xx++ {
				screen.SetContent(xx, y1-1, tview.BoxDrawingsLightHorizontal, nil, lineStyle)
			}
			if col < st.Size-1 {
				screen.SetContent(x1-1, y1-1, tview.BoxDrawingsLightVerticalAndHorizontal, nil, lineStyle)
			}
		}

		tok := game.ParseToken(string(st.Rows[row][col]))
		if tok == game.NoToken {
			continue
		}
		style := tokenStyles[tok]
		if winning[grid.Pos{X: col, Y: row}] {
			style = style.Background(tcell.ColorDarkGreen)
		}
		screen.SetContent((x0+x1-1)/2, (y0+y1-1)/2, rune(tok.String()[0]), nil, style)
	}

	return ix, iy, iw, ih
}

// validBoard reports whether st has Size rows of Size cells each.
func validBoard(st message.BoardState) bool {
	if st.Size < 1 || len(st.Rows) != st.Size {
		return false
	}
	for _, r := range st.Rows {
		if len(r) != st.Size {
			return false
		}
	}
	return true
}

func drawText(screen tcell.Screen, x, y, maxWidth int, text string, style tcell.Style) {
	for i, r := range text {
		if i >= maxWidth {
			return
		}
		screen.SetContent(x+i, y, r, nil, style)
	}
}
