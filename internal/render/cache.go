// Package render кэширует отрисованные квадратные чанки карты. Чанк
// перерисовывается только когда он нужен для вывода и отсутствует в кэше;
// изменения освещения лишь удаляют затронутые чанки.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
	"golang.org/x/image/draw"
)

const (
	// DefaultChunkSize - сторона чанка в блоках
	DefaultChunkSize = 8
	// DefaultTileSize - сторона блока в пикселях
	DefaultTileSize = 20
)

// Sky - цвет фона за прозрачными блоками при полном освещении
var Sky = color.RGBA{R: 100, G: 100, B: 255, A: 255}

// Source - то, что кэш читает из мира. Реализуется world.Grid.
type Source interface {
	Size() (width, height int)
	GetBlock(x, y int) (block.ID, bool)
	GetLight(x, y int) (int, bool)
	Registry() *block.Registry
}

// tileKey - масштабированный вариант внешнего вида блока
type tileKey struct {
	id    block.ID
	level int
}

// ChunkCache хранит изображения чанков по координатам левого верхнего блока.
// Отсутствие записи означает, что чанк устарел. Не потокобезопасен: вызывается
// только из горутины симуляции.
type ChunkCache struct {
	src       Source
	chunkSize int
	tileSize  int

	chunks map[vec.Vec2]*image.RGBA
	tiles  map[tileKey]*image.RGBA

	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewChunkCache создаёт пустой кэш
func NewChunkCache(src Source, chunkSize, tileSize int, m *metrics.Metrics) (*ChunkCache, error) {
	if chunkSize <= 0 || tileSize <= 0 {
		return nil, fmt.Errorf("render: invalid chunk size %d or tile size %d", chunkSize, tileSize)
	}
	return &ChunkCache{
		src:       src,
		chunkSize: chunkSize,
		tileSize:  tileSize,
		chunks:    make(map[vec.Vec2]*image.RGBA),
		tiles:     make(map[tileKey]*image.RGBA),
		log:       logging.GetComponentLogger("render"),
		metrics:   m,
	}, nil
}

// ChunkSize возвращает сторону чанка в блоках
func (c *ChunkCache) ChunkSize() int { return c.chunkSize }

// TileSize возвращает сторону блока в пикселях
func (c *ChunkCache) TileSize() int { return c.tileSize }

// Len возвращает число закэшированных чанков
func (c *ChunkCache) Len() int { return len(c.chunks) }

// Cached сообщает, есть ли в кэше чанк с данным началом
func (c *ChunkCache) Cached(origin vec.Vec2) bool {
	_, ok := c.chunks[origin]
	return ok
}

// ChunksInRect возвращает начала всех чанков, квадрат которых пересекается
// с прямоугольником r (в блоках). Отрицательные координаты округляются вниз.
func (c *ChunkCache) ChunksInRect(r vec.Rect) []vec.Vec2 {
	min, max := r.CellRange()
	if max.X <= min.X || max.Y <= min.Y {
		return nil
	}
	first := min.ChunkOrigin(c.chunkSize)
	last := vec.Vec2{X: max.X - 1, Y: max.Y - 1}.ChunkOrigin(c.chunkSize)

	var chunks []vec.Vec2
	for x := first.X; x <= last.X; x += c.chunkSize {
		for y := first.Y; y <= last.Y; y += c.chunkSize {
			chunks = append(chunks, vec.Vec2{X: x, Y: y})
		}
	}
	return chunks
}

// inMap проверяет, что чанк содержит хотя бы одну клетку карты
func (c *ChunkCache) inMap(origin vec.Vec2) bool {
	w, h := c.src.Size()
	return origin.X+c.chunkSize > 0 && origin.Y+c.chunkSize > 0 && origin.X < w && origin.Y < h
}

// Draw выводит в dst видимую часть карты, topLeft - координата мира (в блоках),
// попадающая в левый верхний пиксель dst. Отсутствующие чанки отрисовываются
// синхронно и сохраняются в кэш.
func (c *ChunkCache) Draw(dst draw.Image, topLeft vec.Vec2Float) {
	b := dst.Bounds()
	tile := float64(c.tileSize)
	view := vec.Rect{
		X: topLeft.X,
		Y: topLeft.Y,
		W: float64(b.Dx()) / tile,
		H: float64(b.Dy()) / tile,
	}

	for _, origin := range c.ChunksInRect(view) {
		if !c.inMap(origin) {
			continue
		}
		img := c.chunk(origin)
		px := b.Min.X + int(math.Floor((float64(origin.X)-topLeft.X)*tile))
		py := b.Min.Y + int(math.Floor((float64(origin.Y)-topLeft.Y)*tile))
		r := img.Bounds().Add(image.Pt(px, py))
		draw.Draw(dst, r, img, image.Point{}, draw.Src)
	}
}

// chunk возвращает изображение чанка, при промахе отрисовывая его
func (c *ChunkCache) chunk(origin vec.Vec2) *image.RGBA {
	if img, ok := c.chunks[origin]; ok {
		c.metrics.ChunkHit()
		return img
	}
	start := time.Now()
	img := c.renderChunk(origin)
	c.chunks[origin] = img
	elapsed := time.Since(start)
	c.metrics.ChunkMiss(elapsed)
	c.log.Trace("Промах кэша на чанке %d,%d: отрисован за %v", origin.X, origin.Y, elapsed)
	return img
}

// Invalidate удаляет из кэша все чанки, содержащие перечисленные клетки.
// Перерисовка откладывается до следующего Draw.
func (c *ChunkCache) Invalidate(cells []vec.Vec2) {
	dropped := 0
	for _, cell := range cells {
		origin := cell.ChunkOrigin(c.chunkSize)
		if _, ok := c.chunks[origin]; ok {
			delete(c.chunks, origin)
			dropped++
		}
	}
	c.metrics.ChunksInvalidated(dropped)
}

// Prime отрисовывает все чанки карты заранее
func (c *ChunkCache) Prime() {
	w, h := c.src.Size()
	start := time.Now()
	for _, origin := range c.ChunksInRect(vec.Rect{W: float64(w), H: float64(h)}) {
		c.chunk(origin)
	}
	c.log.Info("🧱 Кэш чанков заполнен: %d чанков за %v", len(c.chunks), time.Since(start))
}

// renderChunk рисует квадрат chunkSize x chunkSize блоков начиная с origin.
// Клетки без внешнего вида закрашиваются фоном, затемнённым по уровню света.
func (c *ChunkCache) renderChunk(origin vec.Vec2) *image.RGBA {
	side := c.chunkSize * c.tileSize
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	reg := c.src.Registry()

	for dx := 0; dx < c.chunkSize; dx++ {
		for dy := 0; dy < c.chunkSize; dy++ {
			x, y := origin.X+dx, origin.Y+dy
			cell := image.Rect(dx*c.tileSize, dy*c.tileSize, (dx+1)*c.tileSize, (dy+1)*c.tileSize)

			id, ok := c.src.GetBlock(x, y)
			if !ok {
				continue
			}
			level, _ := c.src.GetLight(x, y)
			draw.Draw(img, cell, image.NewUniform(shadeColor(Sky, level)), image.Point{}, draw.Src)

			bt, ok := reg.ByID(id)
			if !ok {
				continue
			}
			if t := c.tile(bt, level); t != nil {
				draw.Draw(img, cell, t, image.Point{}, draw.Over)
			}
		}
	}
	return img
}

// tile возвращает вариант внешнего вида блока, масштабированный до размера клетки
func (c *ChunkCache) tile(bt *block.BlockType, level int) *image.RGBA {
	src := bt.Variant(level)
	if src == nil {
		return nil
	}
	key := tileKey{id: bt.ID, level: level}
	if t, ok := c.tiles[key]; ok {
		return t
	}
	t := image.NewRGBA(image.Rect(0, 0, c.tileSize, c.tileSize))
	draw.NearestNeighbor.Scale(t, t.Bounds(), src, src.Bounds(), draw.Src, nil)
	c.tiles[key] = t
	return t
}

// shadeColor затемняет цвет пропорционально недостатку света
func shadeColor(base color.RGBA, level int) color.RGBA {
	if level < 0 {
		level = 0
	}
	if level > block.MaxLight {
		level = block.MaxLight
	}
	scale := func(v uint8) uint8 { return uint8(int(v) * level / block.MaxLight) }
	return color.RGBA{R: scale(base.R), G: scale(base.G), B: scale(base.B), A: base.A}
}

// ClampViewport сдвигает левый верхний угол окна размером viewW x viewH
// (в блоках) так, чтобы окно не выходило за карту. Если окно больше карты,
// угол прижимается к нулю.
func ClampViewport(topLeft vec.Vec2Float, viewW, viewH float64, mapW, mapH int) vec.Vec2Float {
	clamp := func(v, view float64, size int) float64 {
		maxV := float64(size) - view
		if v > maxV {
			v = maxV
		}
		if v < 0 {
			v = 0
		}
		return v
	}
	return vec.Vec2Float{X: clamp(topLeft.X, viewW, mapW), Y: clamp(topLeft.Y, viewH, mapH)}
}

// CenterViewport возвращает левый верхний угол окна с центром в center,
// ограниченный картой
func CenterViewport(center vec.Vec2Float, viewW, viewH float64, mapW, mapH int) vec.Vec2Float {
	topLeft := vec.Vec2Float{X: center.X - viewW/2, Y: center.Y - viewH/2}
	return ClampViewport(topLeft, viewW, viewH, mapW, mapH)
}
