package vec

import "math"

// Vec2 представляет целочисленные 2D координаты клетки сетки
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// ChunkOrigin возвращает координаты левого верхнего блока чанка размером size,
// которому принадлежит клетка. Корректно работает для отрицательных координат.
func (v Vec2) ChunkOrigin(size int) Vec2 {
	return Vec2{X: FloorDiv(v.X, size) * size, Y: FloorDiv(v.Y, size) * size}
}

// ManhattanTo возвращает манхэттенское расстояние до другой клетки
func (v Vec2) ManhattanTo(other Vec2) int {
	return abs(v.X-other.X) + abs(v.Y-other.Y)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Neighbors4 возвращает четырёх ортогональных соседей клетки
func (v Vec2) Neighbors4() [4]Vec2 {
	return [4]Vec2{
		{X: v.X + 1, Y: v.Y},
		{X: v.X - 1, Y: v.Y},
		{X: v.X, Y: v.Y + 1},
		{X: v.X, Y: v.Y - 1},
	}
}

// FloorDiv выполняет целочисленное деление с округлением вниз
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
