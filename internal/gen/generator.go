// Package gen строит начальные карты блоков.
package gen

import (
	"fmt"

	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/world/block"
)

// Generator создаёт массив ID блоков карты width x height (построчно, y*width+x)
type Generator interface {
	Generate(width, height int) ([]block.ID, error)
}

// NoiseGenerator строит рельеф из трёх слоёв шума: высоты, пещер и камня
type NoiseGenerator struct {
	Seed int64

	HeightScale float64 // меньше - более гладкий рельеф
	CaveScale   float64
	RockScale   float64

	// Рельеф: выше SkyLine всегда воздух, ниже GroundLine всегда земля
	SkyLine    float64
	GroundLine float64

	air, ground, rock block.ID
}

// NewNoiseGenerator создаёт генератор. В каталоге должны быть блоки air, grass и rock.
func NewNoiseGenerator(reg *block.Registry, seed int64) (*NoiseGenerator, error) {
	ids, err := lookupIDs(reg, block.AirName, block.GrassName, block.RockName)
	if err != nil {
		return nil, err
	}
	return &NoiseGenerator{
		Seed:        seed,
		HeightScale: 0.04,
		CaveScale:   0.1,
		RockScale:   0.1,
		SkyLine:     20,
		GroundLine:  40,
		air:         ids[0],
		ground:      ids[1],
		rock:        ids[2],
	}, nil
}

// Generate строит карту
func (g *NoiseGenerator) Generate(width, height int) ([]block.ID, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gen: invalid map size %dx%d", width, height)
	}

	heightmap := NewNoise(g.Seed, g.HeightScale, g.HeightScale)
	caves := NewNoise(g.Seed+1, g.CaveScale, g.CaveScale)
	rocks := NewNoise(g.Seed+2, g.RockScale, g.RockScale)

	blocks := make([]block.ID, width*height)
	solid := 0
	for y := 0; y < height; y++ {
		// пещер и камня больше у поверхности, дальше вглубь - меньше
		caveFreq := 1 - vGradient(80, -60, y)
		rockFreq := 1 - vGradient(80, -100, y)
		for x := 0; x < width; x++ {
			ground := threshold(vGradient(g.GroundLine, g.SkyLine, y), heightmap.At(x, y))
			open := threshold(add(caves.At(x, y), caveFreq), 0.5)
			comp := sub(ground, sub(1, open))

			id := g.air
			if comp == 1 {
				id = g.ground
				if threshold(add(rocks.At(x, y), rockFreq), 0.3) == 0 {
					id = g.rock
				}
				solid++
			}
			blocks[y*width+x] = id
		}
	}

	logging.Debug("🌍 Сгенерирована карта %dx%d (сид %d): %d твёрдых блоков", width, height, g.Seed, solid)
	return blocks, nil
}

// FlatGenerator строит ровную поверхность: воздух над Surface, трава на
// Surface, ниже земля
type FlatGenerator struct {
	Surface int

	air, grass, dirt block.ID
}

// NewFlatGenerator создаёт генератор. В каталоге должны быть блоки air, grass и dirt.
func NewFlatGenerator(reg *block.Registry, surface int) (*FlatGenerator, error) {
	ids, err := lookupIDs(reg, block.AirName, block.GrassName, block.DirtName)
	if err != nil {
		return nil, err
	}
	return &FlatGenerator{Surface: surface, air: ids[0], grass: ids[1], dirt: ids[2]}, nil
}

// Generate строит карту
func (g *FlatGenerator) Generate(width, height int) ([]block.ID, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gen: invalid map size %dx%d", width, height)
	}
	blocks := make([]block.ID, width*height)
	for y := 0; y < height; y++ {
		id := g.air
		switch {
		case y == g.Surface:
			id = g.grass
		case y > g.Surface:
			id = g.dirt
		}
		for x := 0; x < width; x++ {
			blocks[y*width+x] = id
		}
	}
	return blocks, nil
}

// New выбирает генератор по имени ("noise" или "flat")
func New(kind string, reg *block.Registry, seed int64, surface int) (Generator, error) {
	switch kind {
	case "noise", "":
		return NewNoiseGenerator(reg, seed)
	case "flat":
		return NewFlatGenerator(reg, surface)
	default:
		return nil, fmt.Errorf("gen: unknown generator %q", kind)
	}
}

func lookupIDs(reg *block.Registry, names ...string) ([]block.ID, error) {
	ids := make([]block.ID, len(names))
	for i, name := range names {
		bt, ok := reg.ByName(name)
		if !ok {
			return nil, fmt.Errorf("gen: catalog has no %q block: %w", name, block.ErrUnknownBlock)
		}
		ids[i] = bt.ID
	}
	return ids, nil
}
