package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestWorld - карта 10x10 с каменным полом на y=5 и подписанным кэшем 8x8
func newTestWorld(t *testing.T) (*world.Grid, *ChunkCache) {
	t.Helper()
	reg := block.Default()
	blocks := make([]block.ID, 100)
	for x := 0; x < 10; x++ {
		blocks[5*10+x] = reg.MustID(block.RockName)
	}
	g, err := world.NewGrid(reg, 10, 10, blocks, nil)
	require.NoError(t, err)

	c, err := NewChunkCache(g, DefaultChunkSize, DefaultTileSize, metrics.New(nil))
	require.NoError(t, err)
	g.AddInvalidator(c)
	return g, c
}

func TestNewChunkCacheValidation(t *testing.T) {
	g, _ := newTestWorld(t)
	_, err := NewChunkCache(g, 0, 20, nil)
	assert.Error(t, err)
	_, err = NewChunkCache(g, 8, -1, nil)
	assert.Error(t, err)
}

func TestChunksInRect(t *testing.T) {
	_, c := newTestWorld(t)

	assert.Equal(t, []vec.Vec2{{X: 0, Y: 0}}, c.ChunksInRect(vec.Rect{W: 8, H: 8}))
	assert.ElementsMatch(t,
		[]vec.Vec2{{X: 0, Y: 0}, {X: 8, Y: 0}},
		c.ChunksInRect(vec.Rect{X: 0.5, Y: 0, W: 8, H: 1}))
	assert.ElementsMatch(t,
		[]vec.Vec2{{X: -8, Y: -8}, {X: -8, Y: 0}, {X: 0, Y: -8}, {X: 0, Y: 0}},
		c.ChunksInRect(vec.Rect{X: -1, Y: -1, W: 2, H: 2}),
		"отрицательные координаты округляются вниз")
	assert.Empty(t, c.ChunksInRect(vec.Rect{X: 3, Y: 3}))
}

func TestDrawCachesChunks(t *testing.T) {
	_, c := newTestWorld(t)
	dst := image.NewRGBA(image.Rect(0, 0, 10*DefaultTileSize, 10*DefaultTileSize))

	assert.Equal(t, 0, c.Len())
	c.Draw(dst, vec.Vec2Float{})
	assert.Equal(t, 4, c.Len(), "карта 10x10 занимает четыре чанка 8x8")

	first := c.chunks[vec.Vec2{}]
	c.Draw(dst, vec.Vec2Float{})
	assert.Same(t, first, c.chunks[vec.Vec2{}], "повторный вывод берёт чанк из кэша")
}

func TestDrawSkipsChunksOutsideMap(t *testing.T) {
	_, c := newTestWorld(t)
	dst := image.NewRGBA(image.Rect(0, 0, 8*DefaultTileSize, 8*DefaultTileSize))

	c.Draw(dst, vec.Vec2Float{X: -4, Y: -4})
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Cached(vec.Vec2{X: 0, Y: 0}))
	assert.False(t, c.Cached(vec.Vec2{X: -8, Y: -8}))
}

func TestDrawPixels(t *testing.T) {
	_, c := newTestWorld(t)
	tile := DefaultTileSize
	dst := image.NewRGBA(image.Rect(0, 0, 10*tile, 10*tile))
	c.Draw(dst, vec.Vec2Float{})

	// небо над полом при полном освещении
	assert.Equal(t, Sky, dst.RGBAAt(2*tile+tile/2, 1*tile+tile/2))

	// камень пола освещён небом и рисуется без затемнения
	rock := color.RGBA{R: 110, G: 110, B: 110, A: 255}
	assert.Equal(t, rock, dst.RGBAAt(2*tile+tile/2, 5*tile+tile/2))

	// воздух под полом темнее неба
	below := dst.RGBAAt(2*tile+tile/2, 8*tile+tile/2)
	assert.Less(t, below.B, Sky.B)
}

func TestInvalidateIsLazy(t *testing.T) {
	g, c := newTestWorld(t)
	c.Prime()
	require.Equal(t, 4, c.Len())

	changed, err := g.SetBlock(9, 9, g.Registry().MustID(block.LampName))
	require.NoError(t, err)
	require.NotEmpty(t, changed)

	assert.False(t, c.Cached(vec.Vec2{X: 8, Y: 8}), "чанк с изменённой клеткой удалён")
	assert.Less(t, c.Len(), 4)

	dst := image.NewRGBA(image.Rect(0, 0, 2*DefaultTileSize, 2*DefaultTileSize))
	c.Draw(dst, vec.Vec2Float{X: 8, Y: 8})
	assert.True(t, c.Cached(vec.Vec2{X: 8, Y: 8}), "чанк перерисован при выводе")
}

func TestInvalidateUnknownCells(t *testing.T) {
	_, c := newTestWorld(t)
	assert.NotPanics(t, func() {
		c.Invalidate([]vec.Vec2{{X: -100, Y: 3}, {X: 4, Y: 4}})
	})
	assert.Equal(t, 0, c.Len())
}

func TestClampViewport(t *testing.T) {
	assert.Equal(t, vec.Vec2Float{X: 0, Y: 0}, ClampViewport(vec.Vec2Float{X: -3, Y: -1}, 10, 10, 100, 100))
	assert.Equal(t, vec.Vec2Float{X: 90, Y: 80}, ClampViewport(vec.Vec2Float{X: 95, Y: 99}, 10, 20, 100, 100))
	assert.Equal(t, vec.Vec2Float{X: 0, Y: 0}, ClampViewport(vec.Vec2Float{X: 5, Y: 5}, 200, 200, 100, 100),
		"окно больше карты прижимается к нулю")

	assert.Equal(t, vec.Vec2Float{X: 45, Y: 0}, CenterViewport(vec.Vec2Float{X: 50, Y: 2}, 10, 10, 100, 100))
}
