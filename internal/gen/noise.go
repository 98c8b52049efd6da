package gen

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha  = 2.0 // Сглаживание шума
	noiseBeta   = 2.0 // Частота шума
	noiseOctave = 3   // Количество октав
)

// Noise - двумерный шум Перлина с фиксированным сидом и масштабом
type Noise struct {
	p      *perlin.Perlin
	scaleX float64
	scaleY float64
}

// NewNoise создаёт генератор шума
func NewNoise(seed int64, scaleX, scaleY float64) *Noise {
	return &Noise{
		p:      perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctave, seed),
		scaleX: scaleX,
		scaleY: scaleY,
	}
}

// At возвращает значение шума в клетке (x, y) в диапазоне [0, 1]
func (n *Noise) At(x, y int) float64 {
	v := n.p.Noise2D(float64(x)*n.scaleX, float64(y)*n.scaleY)
	return clamp01((v + 1.0) / 2.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// add складывает яркости с насыщением в 1
func add(a, b float64) float64 {
	return clamp01(a + b)
}

// sub вычитает яркости с насыщением в 0
func sub(a, b float64) float64 {
	return clamp01(a - b)
}

// threshold возвращает 1 для v > t и 0 иначе
func threshold(v, t float64) float64 {
	if v > t {
		return 1
	}
	return 0
}

// vGradient - вертикальный градиент: 1 ниже start, 0 выше end, линейно между ними.
// Ось y направлена вниз, start > end.
func vGradient(start, end float64, y int) float64 {
	fy := float64(y)
	switch {
	case fy > start:
		return 1
	case fy < end:
		return 0
	default:
		return (fy - end) / (start - end)
	}
}
