// Package light хранит и пересчитывает освещённость клеток мира.
//
// Поле поддерживает инвариант: уровень каждой клетки равен тому, что дал бы
// полный пересчёт от всех настоящих источников (клеток под открытым небом и
// светящихся блоков). После изменения одной клетки пересчитывается только
// окрестность, в которой уровень мог измениться.
package light

import (
	"fmt"
	"time"

	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
)

// BlockSource даёт полю доступ к блокам мира только на чтение
type BlockSource interface {
	Size() (width, height int)
	GetBlock(x, y int) (block.ID, bool)
}

// cellProps - свойства блока, нужные освещению, в плоской таблице по ID
type cellProps struct {
	opacity    int
	brightness int
	solid      bool
}

// Field - уровни освещённости всех клеток и граница солнечного света по столбцам
type Field struct {
	src    BlockSource
	width  int
	height int

	levels []uint8
	sunY   []int // самая нижняя клетка столбца, куда ещё попадает небо

	props  []cellProps
	radius int // радиус локального пересчёта, -1 - не ограничен

	// служебные буферы локального пересчёта
	stamp    []uint32
	gen      uint32
	area     []int
	queue    []int
	tracking bool

	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewField создаёт поле освещения и выполняет полный пересчёт
func NewField(src BlockSource, reg *block.Registry, m *metrics.Metrics) *Field {
	w, h := src.Size()
	f := &Field{
		src:     src,
		width:   w,
		height:  h,
		levels:  make([]uint8, w*h),
		sunY:    make([]int, w),
		stamp:   make([]uint32, w*h),
		log:     logging.GetComponentLogger("light"),
		metrics: m,
	}

	var maxID block.ID
	for _, id := range reg.IDs() {
		if id > maxID {
			maxID = id
		}
	}
	f.props = make([]cellProps, int(maxID)+1)
	for _, id := range reg.IDs() {
		bt, _ := reg.ByID(id)
		f.props[id] = cellProps{opacity: bt.Opacity, brightness: bt.Brightness, solid: bt.Solid}
	}

	f.radius = blastRadius(reg.MinOpacity())
	if f.radius < 0 {
		f.log.Warn("⚠️ В каталоге есть блоки с нулевой непрозрачностью: свет распространяется без затухания, " +
			"локальный пересчёт невозможен - каждое изменение вызывает полную перестройку освещения")
	}

	start := time.Now()
	f.Rebuild()
	f.log.Debug("Освещение %dx%d построено за %v (радиус пересчёта %d)", w, h, time.Since(start), f.radius)
	return f
}

// blastRadius возвращает расстояние, дальше которого изменение одной клетки не
// может повлиять на освещённость: каждый шаг отнимает не меньше minOpacity.
func blastRadius(minOpacity int) int {
	if minOpacity <= 0 {
		return -1
	}
	return (block.MaxLight + minOpacity - 1) / minOpacity
}

// Size возвращает размеры поля
func (f *Field) Size() (int, int) {
	return f.width, f.height
}

// Radius возвращает радиус локального пересчёта (-1 - всегда полный пересчёт)
func (f *Field) Radius() int {
	return f.radius
}

func (f *Field) inBounds(x, y int) bool {
	return x >= 0 && x < f.width && y >= 0 && y < f.height
}

// GetLight возвращает уровень освещения клетки; ok == false за пределами карты
func (f *Field) GetLight(x, y int) (int, bool) {
	if !f.inBounds(x, y) {
		return 0, false
	}
	return int(f.levels[y*f.width+x]), true
}

// SetLight записывает уровень освещения. Координаты за пределами карты -
// нарушение предусловия, вызывающий обязан проверить их заранее.
func (f *Field) SetLight(x, y, level int) {
	if !f.inBounds(x, y) {
		panic(fmt.Sprintf("light: SetLight(%d, %d) out of bounds %dx%d", x, y, f.width, f.height))
	}
	if level < 0 || level > block.MaxLight {
		panic(fmt.Sprintf("light: level %d out of [0,%d]", level, block.MaxLight))
	}
	f.levels[y*f.width+x] = uint8(level)
}

// SunBoundary возвращает границу солнечного света для столбца x:
// все клетки с y <= SunBoundary(x) освещены небом.
func (f *Field) SunBoundary(x int) int {
	return f.sunY[x]
}

// Levels возвращает копию всех уровней в порядке строк
func (f *Field) Levels() []uint8 {
	out := make([]uint8, len(f.levels))
	copy(out, f.levels)
	return out
}

func (f *Field) propsAt(i int) cellProps {
	id, ok := f.src.GetBlock(i%f.width, i/f.width)
	if !ok || int(id) >= len(f.props) {
		return cellProps{}
	}
	return f.props[id]
}

// scanColumn находит первый твёрдый блок сверху; без твёрдых блоков граница -
// нижняя строка карты.
func (f *Field) scanColumn(x int) int {
	for y := 0; y < f.height; y++ {
		if f.propsAt(y*f.width + x).solid {
			return y
		}
	}
	return f.height - 1
}

// seed возвращает уровень, который клетка имеет как источник света
func (f *Field) seed(i int) int {
	x, y := i%f.width, i/f.width
	if y <= f.sunY[x] {
		return block.MaxLight
	}
	return f.propsAt(i).brightness
}

// Rebuild полностью пересчитывает освещение всей карты
func (f *Field) Rebuild() {
	for x := 0; x < f.width; x++ {
		f.sunY[x] = f.scanColumn(x)
	}
	for i := range f.levels {
		f.levels[i] = 0
	}

	queue := f.queue[:0]
	for i := range f.levels {
		if s := f.seed(i); s > 0 {
			f.levels[i] = uint8(s)
			queue = append(queue, i)
		}
	}
	f.propagate(queue)
}

// Update пересчитывает освещение после изменения блока в клетке (x, y) и
// возвращает клетки, уровень которых мог измениться. Набор может быть шире
// реально изменившихся клеток, но никогда не уже.
func (f *Field) Update(x, y int) []vec.Vec2 {
	if !f.inBounds(x, y) {
		return nil
	}
	start := time.Now()

	if f.radius < 0 {
		f.Rebuild()
		changed := f.allCells()
		f.metrics.LightUpdated(time.Since(start), len(changed), true)
		return changed
	}

	f.nextGen()
	areaMark := f.gen
	borderMark := f.gen + 1
	f.area = f.area[:0]

	f.markBall(x, y, areaMark)

	// Граница солнечного света могла сдвинуться только в изменённом столбце
	oldSun := f.sunY[x]
	newSun := f.scanColumn(x)
	f.sunY[x] = newSun
	if oldSun != newSun {
		lo, hi := oldSun, newSun
		if lo > hi {
			lo, hi = hi, lo
		}
		// клетки (lo, hi] сменили статус "под открытым небом"
		for sy := lo + 1; sy <= hi; sy++ {
			f.markBall(x, sy, areaMark)
		}
	}

	// Свет только растёт при распространении, поэтому отрезанный источник
	// нельзя погасить без предварительного обнуления всей области.
	for _, i := range f.area {
		f.levels[i] = 0
	}

	queue := f.queue[:0]
	areaLen := len(f.area)
	for k := 0; k < areaLen; k++ {
		i := f.area[k]
		if s := f.seed(i); s > 0 {
			f.levels[i] = uint8(s)
			queue = append(queue, i)
		}
		cx, cy := i%f.width, i/f.width
		for _, n := range (vec.Vec2{X: cx, Y: cy}).Neighbors4() {
			if !f.inBounds(n.X, n.Y) {
				continue
			}
			ni := n.Y*f.width + n.X
			if f.stamp[ni] == areaMark || f.stamp[ni] == borderMark {
				continue
			}
			f.stamp[ni] = borderMark
			if s := f.seed(ni); s > int(f.levels[ni]) {
				f.levels[ni] = uint8(s)
			}
			if f.levels[ni] > 0 {
				queue = append(queue, ni)
			}
		}
	}

	f.tracking = true
	f.propagate(queue)
	f.tracking = false

	changed := make([]vec.Vec2, len(f.area))
	for k, i := range f.area {
		changed[k] = vec.Vec2{X: i % f.width, Y: i / f.width}
	}
	f.metrics.LightUpdated(time.Since(start), len(changed), false)
	return changed
}

// nextGen выделяет два новых значения штампа (область и её граница)
func (f *Field) nextGen() {
	if f.gen >= ^uint32(0)-2 {
		for i := range f.stamp {
			f.stamp[i] = 0
		}
		f.gen = 0
	}
	f.gen += 2
}

// markBall добавляет в область все клетки в пределах манхэттенского радиуса
func (f *Field) markBall(cx, cy int, mark uint32) {
	r := f.radius
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < 0 || y >= f.height {
			continue
		}
		span := r - absInt(dy)
		for dx := -span; dx <= span; dx++ {
			x := cx + dx
			if x < 0 || x >= f.width {
				continue
			}
			i := y*f.width + x
			if f.stamp[i] != mark {
				f.stamp[i] = mark
				f.area = append(f.area, i)
			}
		}
	}
}

// propagate распространяет свет от клеток очереди. Соседу достаётся уровень
// L - opacity источника, только если он строго больше текущего; уровни только
// растут и ограничены MaxLight, поэтому цикл конечен.
func (f *Field) propagate(queue []int) {
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		next := int(f.levels[i]) - f.propsAt(i).opacity
		if next <= 0 {
			continue
		}

		x, y := i%f.width, i/f.width
		if x+1 < f.width {
			queue = f.raise(i+1, next, queue)
		}
		if x > 0 {
			queue = f.raise(i-1, next, queue)
		}
		if y+1 < f.height {
			queue = f.raise(i+f.width, next, queue)
		}
		if y > 0 {
			queue = f.raise(i-f.width, next, queue)
		}
	}
	f.queue = queue[:0]
}

func (f *Field) raise(n, level int, queue []int) []int {
	if int(f.levels[n]) >= level {
		return queue
	}
	f.levels[n] = uint8(level)
	// клетка вне очищенной области всё равно попадает в отчёт об изменениях
	if f.tracking && f.stamp[n] != f.gen {
		f.stamp[n] = f.gen
		f.area = append(f.area, n)
	}
	return append(queue, n)
}

func (f *Field) allCells() []vec.Vec2 {
	cells := make([]vec.Vec2, 0, f.width*f.height)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			cells = append(cells, vec.Vec2{X: x, Y: y})
		}
	}
	return cells
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
