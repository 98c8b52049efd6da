package world

import (
	"errors"
	"testing"

	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingInvalidator запоминает все полученные наборы клеток
type recordingInvalidator struct {
	calls [][]vec.Vec2
}

func (r *recordingInvalidator) Invalidate(cells []vec.Vec2) {
	r.calls = append(r.calls, cells)
}

// newFloorGrid - карта 10x10 из воздуха с каменным полом на y=5
func newFloorGrid(t *testing.T) *Grid {
	t.Helper()
	reg := block.Default()
	blocks := make([]block.ID, 100)
	for i := range blocks {
		blocks[i] = reg.MustID(block.AirName)
	}
	for x := 0; x < 10; x++ {
		blocks[5*10+x] = reg.MustID(block.RockName)
	}
	g, err := NewGrid(reg, 10, 10, blocks, nil)
	require.NoError(t, err)
	return g
}

func TestNewGridValidation(t *testing.T) {
	reg := block.Default()

	_, err := NewGrid(reg, 0, 5, nil, nil)
	assert.Error(t, err)

	_, err = NewGrid(reg, 2, 2, make([]block.ID, 3), nil)
	assert.Error(t, err)

	_, err = NewGrid(reg, 2, 2, []block.ID{0, 0, 0, 99}, nil)
	assert.True(t, errors.Is(err, ErrUnknownBlock))
}

func TestGridCopiesInput(t *testing.T) {
	reg := block.Default()
	blocks := make([]block.ID, 4)
	g, err := NewGrid(reg, 2, 2, blocks, nil)
	require.NoError(t, err)

	blocks[0] = reg.MustID(block.RockName)
	id, ok := g.GetBlock(0, 0)
	require.True(t, ok)
	assert.Equal(t, reg.MustID(block.AirName), id, "сетка не должна разделять массив вызывающего")

	out := g.Blocks()
	out[1] = reg.MustID(block.RockName)
	id, _ = g.GetBlock(1, 0)
	assert.Equal(t, reg.MustID(block.AirName), id)
}

func TestGetBlockOutOfRange(t *testing.T) {
	g := newFloorGrid(t)

	for _, p := range []vec.Vec2{{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 10, Y: 0}, {X: 0, Y: 10}} {
		_, ok := g.GetBlock(p.X, p.Y)
		assert.False(t, ok, "клетка %v вне карты", p)
		_, ok = g.GetLight(p.X, p.Y)
		assert.False(t, ok)
		assert.False(t, g.IsSolidBlock(p.X, p.Y))
	}
}

func TestSetBlockErrors(t *testing.T) {
	g := newFloorGrid(t)

	_, err := g.SetBlock(10, 0, 0)
	assert.True(t, errors.Is(err, ErrOutOfBounds))

	_, err = g.SetBlock(0, 0, 77)
	assert.True(t, errors.Is(err, ErrUnknownBlock))
}

func TestSetBlockUpdatesLightAndInvalidates(t *testing.T) {
	g := newFloorGrid(t)
	inv := &recordingInvalidator{}
	g.AddInvalidator(inv)
	rock := g.Registry().MustID(block.RockName)

	l, _ := g.GetLight(3, 4)
	require.Equal(t, block.MaxLight, l)

	changed, err := g.SetBlock(3, 2, rock)
	require.NoError(t, err)
	assert.NotEmpty(t, changed)
	assert.True(t, g.IsSolidBlock(3, 2))

	l, _ = g.GetLight(3, 4)
	assert.Less(t, l, block.MaxLight, "клетка под новым блоком уходит в тень")
	assert.Contains(t, changed, vec.Vec2{X: 3, Y: 4})

	require.Len(t, inv.calls, 1)
	assert.Equal(t, changed, inv.calls[0])
}

func TestSetSameBlockIsNoop(t *testing.T) {
	g := newFloorGrid(t)
	inv := &recordingInvalidator{}
	g.AddInvalidator(inv)
	before := g.Light().Levels()

	changed, err := g.SetBlock(0, 5, g.Registry().MustID(block.RockName))
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Empty(t, inv.calls)
	assert.Equal(t, before, g.Light().Levels())
}

func TestCells(t *testing.T) {
	g := newFloorGrid(t)

	cells := g.Cells(vec.Rect{X: 0.5, Y: 0.5, W: 1.5, H: 1.5})
	assert.ElementsMatch(t, []vec.Vec2{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}, cells)

	cells = g.Cells(vec.Rect{X: 2, Y: 3, W: 1, H: 1})
	assert.Equal(t, []vec.Vec2{{X: 2, Y: 3}}, cells, "прямоугольник по границам клетки занимает одну клетку")

	assert.Empty(t, g.Cells(vec.Rect{X: 1, Y: 1}))
}

func TestRectColliding(t *testing.T) {
	g := newFloorGrid(t)

	assert.False(t, g.RectColliding(vec.Rect{X: 0.5, Y: 2.5, W: 1.5, H: 2.5}, nil), "нижний край ровно на полу")
	assert.True(t, g.RectColliding(vec.Rect{X: 0.5, Y: 2.6, W: 1.5, H: 2.5}, nil))
	assert.False(t, g.RectColliding(vec.Rect{X: -3, Y: -3, W: 1, H: 1}, nil), "вне карты твёрдых блоков нет")

	assumed := vec.Vec2{X: 1, Y: 1}
	r := vec.Rect{X: 0.5, Y: 0.5, W: 1, H: 1}
	assert.False(t, g.RectColliding(r, nil))
	assert.True(t, g.RectColliding(r, &assumed))

	far := vec.Vec2{X: 8, Y: 1}
	assert.False(t, g.RectColliding(r, &far))
}
