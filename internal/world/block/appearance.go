package block

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// DefaultTextureSize - сторона квадратной текстуры, генерируемой из цвета
const DefaultTextureSize = 16

// Shade возвращает копию изображения, затемнённую до уровня освещения level.
// При level == MaxLight изображение не меняется, при 0 становится чёрным.
func Shade(base image.Image, level int) image.Image {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	if level >= MaxLight {
		return out
	}
	if level < 0 {
		level = 0
	}
	alpha := uint8(255 * (MaxLight - level) / MaxLight)
	shade := image.NewUniform(color.RGBA{A: alpha})
	draw.Draw(out, out.Bounds(), shade, image.Point{}, draw.Over)
	return out
}

// LitVariants строит варианты текстуры для всех уровней освещения 0..MaxLight
func LitVariants(base image.Image) []image.Image {
	variants := make([]image.Image, MaxLight+1)
	for level := 0; level <= MaxLight; level++ {
		variants[level] = Shade(base, level)
	}
	return variants
}

// SolidTexture создаёт однотонную текстуру с тёмной рамкой в один пиксель
func SolidTexture(c color.RGBA, size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	edge := color.RGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: c.A}
	for i := 0; i < size; i++ {
		img.SetRGBA(i, size-1, edge)
		img.SetRGBA(size-1, i, edge)
	}
	return img
}
