package physics

import (
	"math"

	"github.com/annel0/tile-sim/internal/vec"
)

// Collider проверяет прямоугольник на пересечение с твёрдыми блоками.
// Реализуется world.Grid.
type Collider interface {
	RectColliding(r vec.Rect, assumeSolid *vec.Vec2) bool
}

// MaxSubstep - наибольшее смещение по одной оси за подшаг. Меньше размера
// клетки, поэтому за подшаг тело не может проскочить блок насквозь.
const MaxSubstep = 0.5

// free проверяет, что прямоугольник с левым верхним углом (x, y) свободен
func free(c Collider, x, y float64, size vec.Vec2Float) bool {
	return !c.RectColliding(vec.Rect{X: x, Y: y, W: size.X, H: size.Y}, nil)
}

// sweepY возвращает y, при котором ведущий край тела стоит на самой дальней
// свободной линии сетки между текущим и предложенным положением. Если такой
// линии нет, возвращается текущий y.
func sweepY(c Collider, x, y, dy float64, size vec.Vec2Float) float64 {
	best := y
	switch {
	case dy > 0:
		bottom := y + size.Y
		for line := math.Ceil(bottom); line <= bottom+dy; line++ {
			if !free(c, x, line-size.Y, size) {
				break
			}
			best = line - size.Y
		}
	case dy < 0:
		for line := math.Floor(y); line >= y+dy; line-- {
			if !free(c, x, line, size) {
				break
			}
			best = line
		}
	}
	return best
}

// sweepX - то же для горизонтальной оси
func sweepX(c Collider, x, y, dx float64, size vec.Vec2Float) float64 {
	best := x
	switch {
	case dx > 0:
		right := x + size.X
		for line := math.Ceil(right); line <= right+dx; line++ {
			if !free(c, line-size.X, y, size) {
				break
			}
			best = line - size.X
		}
	case dx < 0:
		for line := math.Floor(x); line >= x+dx; line-- {
			if !free(c, line, y, size) {
				break
			}
			best = line
		}
	}
	return best
}
