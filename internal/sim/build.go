package sim

import (
	"fmt"

	"github.com/annel0/tile-sim/internal/config"
	"github.com/annel0/tile-sim/internal/entity"
	"github.com/annel0/tile-sim/internal/eventbus"
	"github.com/annel0/tile-sim/internal/gen"
	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/physics"
	"github.com/annel0/tile-sim/internal/render"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world"
	"github.com/annel0/tile-sim/internal/world/block"
)

// FromConfig собирает мир по конфигурации: каталог блоков, генерация карты,
// сетка с освещением, кэш чанков и игрок.
func FromConfig(cfg *config.Config, bus eventbus.EventBus, m *metrics.Metrics) (*Simulation, error) {
	reg := block.Default()
	if cfg.World.Catalog != "" {
		var err error
		if reg, err = block.LoadCatalog(cfg.World.Catalog); err != nil {
			return nil, fmt.Errorf("sim: load catalog: %w", err)
		}
	}

	g, err := gen.New(cfg.World.Generator, reg, cfg.World.Seed, cfg.World.FlatSurface)
	if err != nil {
		return nil, fmt.Errorf("sim: generator: %w", err)
	}
	blocks, err := g.Generate(cfg.World.Width, cfg.World.Height)
	if err != nil {
		return nil, fmt.Errorf("sim: generate map: %w", err)
	}

	grid, err := world.NewGrid(reg, cfg.World.Width, cfg.World.Height, blocks, m)
	if err != nil {
		return nil, fmt.Errorf("sim: grid: %w", err)
	}
	cache, err := render.NewChunkCache(grid, cfg.Render.ChunkSize, cfg.Render.TileSize, m)
	if err != nil {
		return nil, fmt.Errorf("sim: chunk cache: %w", err)
	}
	if cfg.Render.Prime {
		cache.Prime()
	}

	s, err := New(grid, cache, entity.NewManager(), Options{
		Step:            cfg.Sim.Step(),
		MaxCatchUpSteps: cfg.Sim.MaxCatchUpSteps,
		Bus:             bus,
		CompressAbove:   cfg.EventBus.CompressAbove,
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}

	p := cfg.Player
	player, err := s.entities.Spawn(entity.SpawnOptions{
		Name:     p.Name,
		Type:     entity.EntityTypePlayer,
		Position: vec.Vec2Float{X: p.X, Y: p.Y},
		Size:     vec.Vec2Float{X: p.Width, Y: p.Height},
		Tuning:   tuningOrDefault(p.Physics),
	})
	if err != nil {
		return nil, fmt.Errorf("sim: spawn player: %w", err)
	}
	if grid.RectColliding(player.Body.Rect(), nil) {
		logging.Warn("⚠️ Игрок %q появился внутри твёрдых блоков в (%.1f,%.1f)", p.Name, p.X, p.Y)
	}

	logging.Info("🌍 Мир %dx%d готов: генератор %q, seed %d, чанков в кэше %d",
		cfg.World.Width, cfg.World.Height, cfg.World.Generator, cfg.World.Seed, cache.Len())
	return s, nil
}

func tuningOrDefault(t physics.Tuning) physics.Tuning {
	if t == (physics.Tuning{}) {
		return physics.DefaultTuning()
	}
	return t
}
