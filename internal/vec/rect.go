package vec

import "math"

// Rect - прямоугольник с плавающими координатами: левый верхний угол и размер.
// Ось Y направлена вниз, как в сетке мира.
type Rect struct {
	X, Y float64
	W, H float64
}

// NewRect создаёт прямоугольник из позиции и размера
func NewRect(pos, size Vec2Float) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: size.X, H: size.Y}
}

// Min возвращает левый верхний угол
func (r Rect) Min() Vec2Float {
	return Vec2Float{X: r.X, Y: r.Y}
}

// Max возвращает правый нижний угол
func (r Rect) Max() Vec2Float {
	return Vec2Float{X: r.X + r.W, Y: r.Y + r.H}
}

// CellRange возвращает полуоткрытый диапазон клеток [min, max), которые перекрывает
// прямоугольник: floor минимального угла и ceil максимального по каждой оси.
func (r Rect) CellRange() (min, max Vec2) {
	min = Vec2{X: int(math.Floor(r.X)), Y: int(math.Floor(r.Y))}
	max = Vec2{X: int(math.Ceil(r.X + r.W)), Y: int(math.Ceil(r.Y + r.H))}
	return min, max
}

// Intersects проверяет пересечение двух прямоугольников (касание краями не считается)
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.X+other.W && other.X < r.X+r.W &&
		r.Y < other.Y+other.H && other.Y < r.Y+r.H
}
