package light

import (
	"math/rand"
	"testing"

	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGrid - минимальный источник блоков для тестов
type testGrid struct {
	w, h   int
	blocks []block.ID
}

func newTestGrid(w, h int, fill block.ID) *testGrid {
	g := &testGrid{w: w, h: h, blocks: make([]block.ID, w*h)}
	for i := range g.blocks {
		g.blocks[i] = fill
	}
	return g
}

func (g *testGrid) Size() (int, int) { return g.w, g.h }

func (g *testGrid) GetBlock(x, y int) (block.ID, bool) {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return 0, false
	}
	return g.blocks[y*g.w+x], true
}

func (g *testGrid) set(x, y int, id block.ID) { g.blocks[y*g.w+x] = id }

func level(t *testing.T, f *Field, x, y int) int {
	t.Helper()
	l, ok := f.GetLight(x, y)
	require.True(t, ok, "клетка (%d,%d) должна быть на карте", x, y)
	return l
}

// assertMatchesRebuild сравнивает поле с полным пересчётом той же сетки
func assertMatchesRebuild(t *testing.T, g *testGrid, reg *block.Registry, f *Field) {
	t.Helper()
	fresh := NewField(g, reg, nil)
	require.Equal(t, fresh.Levels(), f.Levels(), "инкрементальный пересчёт должен совпадать с полным")
	for x := 0; x < g.w; x++ {
		require.Equal(t, fresh.SunBoundary(x), f.SunBoundary(x), "граница солнца столбца %d", x)
	}
}

func containsCell(cells []vec.Vec2, x, y int) bool {
	for _, c := range cells {
		if c.X == x && c.Y == y {
			return true
		}
	}
	return false
}

func floorGrid(reg *block.Registry) *testGrid {
	g := newTestGrid(10, 10, reg.MustID(block.AirName))
	for x := 0; x < 10; x++ {
		g.set(x, 5, reg.MustID(block.RockName))
	}
	return g
}

func TestFullBuildSunlightAndShadow(t *testing.T) {
	reg := block.Default()
	f := NewField(floorGrid(reg), reg, nil)

	for x := 0; x < 10; x++ {
		assert.Equal(t, 5, f.SunBoundary(x))
		for y := 0; y <= 5; y++ {
			assert.Equal(t, block.MaxLight, level(t, f, x, y), "клетка (%d,%d) под небом", x, y)
		}
		// камень отдаёт 15-5, дальше воздух ослабляет на 1 за шаг
		assert.Equal(t, 10, level(t, f, x, 6))
		assert.Equal(t, 9, level(t, f, x, 7))
		assert.Equal(t, 7, level(t, f, x, 9))
	}
}

func TestColumnWithoutSolidIsLitToBottom(t *testing.T) {
	reg := block.Default()
	g := newTestGrid(3, 4, reg.MustID(block.AirName))
	f := NewField(g, reg, nil)

	assert.Equal(t, 3, f.SunBoundary(1))
	assert.Equal(t, block.MaxLight, level(t, f, 1, 3))
}

func TestEmissiveBlockSeedsBelowSurface(t *testing.T) {
	reg := block.Default()
	g := newTestGrid(9, 9, reg.MustID(block.RockName))
	g.set(4, 6, reg.MustID(block.LampName))
	f := NewField(g, reg, nil)

	assert.Equal(t, block.MaxLight, level(t, f, 4, 6))
	// лампа непрозрачностью 1 отдаёт соседям 14, камень дальше гасит на 5
	assert.Equal(t, 14, level(t, f, 4, 7))
	assert.Equal(t, 14, level(t, f, 3, 6))
	assert.Equal(t, 9, level(t, f, 4, 8))
}

func TestPlacingOpaqueBlockAboveSunlitCell(t *testing.T) {
	reg := block.Default()
	g := floorGrid(reg)
	f := NewField(g, reg, nil)

	before := level(t, f, 3, 3)
	require.Equal(t, block.MaxLight, before)

	g.set(3, 2, reg.MustID(block.RockName))
	changed := f.Update(3, 2)

	after := level(t, f, 3, 3)
	assert.Less(t, after, before, "клетка под новым блоком должна потемнеть")
	assert.True(t, containsCell(changed, 3, 3), "затенённая клетка должна попасть в отчёт")
	assert.Equal(t, 2, f.SunBoundary(3))
	assertMatchesRebuild(t, g, reg, f)
}

func TestRemovingTopmostSolidRestoresSunlight(t *testing.T) {
	reg := block.Default()
	g := floorGrid(reg)
	g.set(6, 1, reg.MustID(block.DirtName))
	f := NewField(g, reg, nil)
	require.Equal(t, 1, f.SunBoundary(6))
	require.Less(t, level(t, f, 6, 4), block.MaxLight)

	g.set(6, 1, reg.MustID(block.AirName))
	changed := f.Update(6, 1)

	assert.Equal(t, 5, f.SunBoundary(6))
	for y := 0; y <= 5; y++ {
		assert.Equal(t, block.MaxLight, level(t, f, 6, y), "клетка (6,%d) снова под небом", y)
		assert.True(t, containsCell(changed, 6, y))
	}
	assertMatchesRebuild(t, g, reg, f)
}

func TestRemovingLampClearsItsLight(t *testing.T) {
	reg := block.Default()
	g := newTestGrid(20, 20, reg.MustID(block.RockName))
	for x := 1; x < 19; x++ {
		g.set(x, 10, reg.MustID(block.AirName)) // тоннель под землёй
	}
	g.set(2, 10, reg.MustID(block.LampName))
	f := NewField(g, reg, nil)
	require.Equal(t, 13, level(t, f, 4, 10))

	g.set(2, 10, reg.MustID(block.AirName))
	f.Update(2, 10)

	assert.Equal(t, 0, level(t, f, 4, 10), "свет отрезанного источника не должен оставаться")
	assertMatchesRebuild(t, g, reg, f)
}

func TestFullOpacityStopsForwarding(t *testing.T) {
	wall := block.BlockType{ID: 5, Name: "wall", Solid: true, Opacity: block.MaxLight}
	reg, err := block.NewRegistry(
		block.BlockType{ID: 0, Name: "air", Opacity: 1},
		block.BlockType{ID: 2, Name: "rock", Solid: true, Opacity: 5},
		block.BlockType{ID: 3, Name: "lamp", Solid: true, Brightness: 15, Opacity: 1},
		wall,
	)
	require.NoError(t, err)

	g := newTestGrid(7, 7, 2)
	for x := 0; x < 7; x++ {
		g.set(x, 3, 0)
	}
	g.set(1, 3, 3)
	g.set(3, 3, 5)
	f := NewField(g, reg, nil)

	assert.Equal(t, 13, level(t, f, 3, 3), "стена сама освещается входящим светом")
	assert.Equal(t, 0, level(t, f, 4, 3), "но дальше свет не пропускает")
}

func TestResetSameBlockKeepsLevels(t *testing.T) {
	reg := block.Default()
	g := floorGrid(reg)
	g.set(4, 8, reg.MustID(block.LampName))
	f := NewField(g, reg, nil)
	before := f.Levels()

	f.Update(4, 8)
	f.Update(4, 5)
	assert.Equal(t, before, f.Levels())
}

func TestIncrementalMatchesFullRebuild(t *testing.T) {
	reg := block.Default()
	ids := reg.IDs()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 5; round++ {
		g := newTestGrid(24, 20, reg.MustID(block.AirName))
		for i := range g.blocks {
			if rng.Float64() < 0.4 {
				g.blocks[i] = ids[rng.Intn(len(ids))]
			}
		}
		f := NewField(g, reg, nil)

		for step := 0; step < 150; step++ {
			x, y := rng.Intn(g.w), rng.Intn(g.h)
			g.set(x, y, ids[rng.Intn(len(ids))])
			f.Update(x, y)
		}
		assertMatchesRebuild(t, g, reg, f)
	}
}

func TestChangedSetCoversEveryChangedCell(t *testing.T) {
	reg := block.Default()
	ids := reg.IDs()
	rng := rand.New(rand.NewSource(99))
	g := newTestGrid(30, 30, reg.MustID(block.AirName))
	for i := range g.blocks {
		if rng.Float64() < 0.3 {
			g.blocks[i] = ids[rng.Intn(len(ids))]
		}
	}
	f := NewField(g, reg, nil)

	for step := 0; step < 100; step++ {
		before := f.Levels()
		x, y := rng.Intn(g.w), rng.Intn(g.h)
		g.set(x, y, ids[rng.Intn(len(ids))])
		changed := f.Update(x, y)

		reported := make(map[vec.Vec2]bool, len(changed))
		for _, c := range changed {
			reported[c] = true
		}
		after := f.Levels()
		for i := range after {
			if after[i] != before[i] {
				c := vec.Vec2{X: i % g.w, Y: i / g.w}
				require.True(t, reported[c], "изменённая клетка %v отсутствует в отчёте", c)
			}
		}
	}
}

func TestZeroOpacityFallsBackToFullRebuild(t *testing.T) {
	reg, err := block.NewRegistry(
		block.BlockType{ID: 0, Name: "air", Opacity: 1},
		block.BlockType{ID: 1, Name: "glass", Opacity: 0},
		block.BlockType{ID: 2, Name: "rock", Solid: true, Opacity: 5},
		block.BlockType{ID: 3, Name: "lamp", Solid: true, Brightness: 15, Opacity: 1},
	)
	require.NoError(t, err)

	// длинный стеклянный коридор под землёй: свет проходит его без затухания
	g := newTestGrid(60, 5, 2)
	for x := 0; x < 60; x++ {
		g.set(x, 3, 1)
	}
	g.set(0, 3, 3)
	f := NewField(g, reg, nil)
	assert.Equal(t, -1, f.Radius())
	require.Equal(t, 14, level(t, f, 59, 3))

	g.set(0, 3, 2)
	changed := f.Update(0, 3)

	assert.Len(t, changed, 60*5, "без ограниченного радиуса перестраивается вся карта")
	assert.Equal(t, 0, level(t, f, 59, 3), "дальний конец коридора должен погаснуть")
	assertMatchesRebuild(t, g, reg, f)
}

func TestBlastRadius(t *testing.T) {
	assert.Equal(t, 15, blastRadius(1))
	assert.Equal(t, 3, blastRadius(5))
	assert.Equal(t, 1, blastRadius(block.MaxLight))
	assert.Equal(t, 1, blastRadius(40))
	assert.Equal(t, -1, blastRadius(0))
}

func TestOutOfRangeAccess(t *testing.T) {
	reg := block.Default()
	f := NewField(newTestGrid(4, 4, 0), reg, nil)

	_, ok := f.GetLight(-1, 0)
	assert.False(t, ok)
	_, ok = f.GetLight(0, 4)
	assert.False(t, ok)

	assert.Panics(t, func() { f.SetLight(4, 0, 3) })
	assert.Panics(t, func() { f.SetLight(0, 0, block.MaxLight+1) })
	assert.NotPanics(t, func() { f.SetLight(1, 1, 3) })
	assert.Equal(t, 3, level(t, f, 1, 1))

	assert.Nil(t, f.Update(10, 10))
}
