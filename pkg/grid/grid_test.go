package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridGetSet(t *testing.T) {
	g := NewGrid(3, 2, 0)
	assert.Equal(t, 3, g.Width())
	assert.Equal(t, 2, g.Height())

	g.Set(2, 1, 7)
	v, ok := g.Get(2, 1)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 7, g.MustGet(2, 1))

	// out of bounds writes are dropped
	g.Set(3, 0, 9)
	_, ok = g.Get(3, 0)
	assert.False(t, ok)
	_, ok = g.Get(-1, 0)
	assert.False(t, ok)
	assert.Equal(t, 5, g.Count(0))

	g.Fill(1)
	assert.Equal(t, 6, g.Count(1))
}

func TestPosArithmetic(t *testing.T) {
	p := Pos{X: 2, Y: 3}
	d := Pos{X: 1, Y: -1}
	assert.Equal(t, Pos{X: 3, Y: 2}, p.Add(d))
	assert.Equal(t, Pos{X: 1, Y: 4}, p.Sub(d))
	assert.Equal(t, "(2, 3)", p.String())
}
