package block

import "image/color"

// Имена стандартных блоков
const (
	AirName   = "air"
	GrassName = "grass"
	RockName  = "rock"
	LampName  = "lamp"
	DirtName  = "dirt"
)

// Default возвращает встроенный каталог блоков
func Default() *Registry {
	//       id  name       solid  brightness opacity colour
	defs := []struct {
		id         ID
		name       string
		solid      bool
		brightness int
		opacity    int
		colour     color.RGBA
	}{
		{0, AirName, false, 0, 1, color.RGBA{}},
		{1, GrassName, true, 0, 5, color.RGBA{R: 60, G: 170, B: 60, A: 255}},
		{2, RockName, true, 0, 5, color.RGBA{R: 110, G: 110, B: 110, A: 255}},
		{3, LampName, true, 15, 1, color.RGBA{R: 250, G: 220, B: 90, A: 255}},
		{4, DirtName, true, 0, 5, color.RGBA{R: 130, G: 90, B: 50, A: 255}},
	}

	types := make([]BlockType, 0, len(defs))
	for _, d := range defs {
		bt := BlockType{
			ID:         d.id,
			Name:       d.name,
			Solid:      d.solid,
			Brightness: d.brightness,
			Opacity:    d.opacity,
		}
		// воздух не рисуется, под ним виден фон
		if d.colour.A > 0 {
			bt.Appearance = LitVariants(SolidTexture(d.colour, DefaultTextureSize))
		}
		types = append(types, bt)
	}

	reg, err := NewRegistry(types...)
	if err != nil {
		// встроенный каталог всегда корректен
		panic(err)
	}
	return reg
}
