package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/annel0/tile-sim/internal/world/light"
)

var (
	// ErrOutOfBounds - координаты за пределами карты при записи
	ErrOutOfBounds = errors.New("world: coordinates out of bounds")
	// ErrUnknownBlock - ID блока отсутствует в каталоге
	ErrUnknownBlock = errors.New("world: unknown block id")
)

// Invalidator получает набор клеток, освещённость которых могла измениться.
// Реализуется производными представлениями мира (кэш отрисовки чанков).
type Invalidator interface {
	Invalidate(cells []vec.Vec2)
}

// Grid - плотная двумерная сетка блоков. Единственная точка изменения мира:
// SetBlock синхронно пересчитывает освещение и уведомляет подписчиков до
// возврата, поэтому снаружи не видно частично пересчитанного мира.
type Grid struct {
	width  int
	height int
	blocks []block.ID

	registry     *block.Registry
	light        *light.Field
	invalidators []Invalidator
}

// NewGrid создаёт сетку из готового массива ID (построчно, y*width+x) и строит
// освещение. Все ID обязаны присутствовать в каталоге.
func NewGrid(reg *block.Registry, width, height int, blocks []block.ID, m *metrics.Metrics) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("world: invalid size %dx%d", width, height)
	}
	if len(blocks) != width*height {
		return nil, fmt.Errorf("world: got %d blocks for %dx%d map", len(blocks), width, height)
	}
	for i, id := range blocks {
		if !reg.Contains(id) {
			return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrUnknownBlock, id, i%width, i/width)
		}
	}

	g := &Grid{
		width:    width,
		height:   height,
		blocks:   make([]block.ID, len(blocks)),
		registry: reg,
	}
	copy(g.blocks, blocks)
	g.light = light.NewField(g, reg, m)
	return g, nil
}

// Size возвращает ширину и высоту карты в блоках
func (g *Grid) Size() (int, int) {
	return g.width, g.height
}

// Registry возвращает каталог блоков мира
func (g *Grid) Registry() *block.Registry {
	return g.registry
}

// Light возвращает поле освещения (только для чтения снаружи пакета)
func (g *Grid) Light() *light.Field {
	return g.light
}

// GetLight возвращает уровень освещения клетки; ok == false за пределами карты
func (g *Grid) GetLight(x, y int) (int, bool) {
	return g.light.GetLight(x, y)
}

// AddInvalidator подписывает производное представление на изменения клеток
func (g *Grid) AddInvalidator(inv Invalidator) {
	g.invalidators = append(g.invalidators, inv)
}

// InBounds проверяет, что клетка принадлежит карте
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// GetBlock возвращает ID блока; ok == false за пределами карты
func (g *Grid) GetBlock(x, y int) (block.ID, bool) {
	if !g.InBounds(x, y) {
		return 0, false
	}
	return g.blocks[y*g.width+x], true
}

// SetBlock заменяет блок, пересчитывает освещение и инвалидирует зависимые
// представления. Возвращает клетки, освещение которых могло измениться.
func (g *Grid) SetBlock(x, y int, id block.ID) ([]vec.Vec2, error) {
	if !g.InBounds(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d map", ErrOutOfBounds, x, y, g.width, g.height)
	}
	if !g.registry.Contains(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBlock, id)
	}

	i := y*g.width + x
	if g.blocks[i] == id {
		return nil, nil
	}
	g.blocks[i] = id

	changed := g.light.Update(x, y)
	for _, inv := range g.invalidators {
		inv.Invalidate(changed)
	}
	return changed, nil
}

// IsSolidBlock возвращает true для твёрдого блока. Клетки за пределами карты
// считаются не твёрдыми.
func (g *Grid) IsSolidBlock(x, y int) bool {
	id, ok := g.GetBlock(x, y)
	return ok && g.registry.IsSolid(id)
}

// Cells перечисляет все клетки, которые перекрывает прямоугольник
func (g *Grid) Cells(r vec.Rect) []vec.Vec2 {
	min, max := r.CellRange()
	if max.X <= min.X || max.Y <= min.Y {
		return nil
	}
	cells := make([]vec.Vec2, 0, (max.X-min.X)*(max.Y-min.Y))
	for x := min.X; x < max.X; x++ {
		for y := min.Y; y < max.Y; y++ {
			cells = append(cells, vec.Vec2{X: x, Y: y})
		}
	}
	return cells
}

// RectColliding возвращает true, если прямоугольник перекрывает твёрдый блок
// или клетку assumeSolid (ещё не поставленный блок, который нужно считать
// твёрдым, например при проверке установки блока).
func (g *Grid) RectColliding(r vec.Rect, assumeSolid *vec.Vec2) bool {
	if math.IsNaN(r.X) || math.IsNaN(r.Y) {
		return true
	}
	min, max := r.CellRange()
	for x := min.X; x < max.X; x++ {
		for y := min.Y; y < max.Y; y++ {
			if assumeSolid != nil && assumeSolid.X == x && assumeSolid.Y == y {
				return true
			}
			if g.IsSolidBlock(x, y) {
				return true
			}
		}
	}
	return false
}

// Blocks возвращает копию массива блоков (построчно)
func (g *Grid) Blocks() []block.ID {
	out := make([]block.ID, len(g.blocks))
	copy(out, g.blocks)
	return out
}
