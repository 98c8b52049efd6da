package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/tile-sim/internal/physics"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации симуляции.
// Поля, отсутствующие в YAML, сохраняют значения Default().
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Render    RenderConfig    `yaml:"render"`
	Sim       SimConfig       `yaml:"sim"`
	Player    PlayerConfig    `yaml:"player"`
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Seed        int64  `yaml:"seed"`
	Generator   string `yaml:"generator"`    // noise | flat
	FlatSurface int    `yaml:"flat_surface"` // строка поверхности для flat
	Catalog     string `yaml:"catalog"`      // путь к YAML каталогу блоков, "" - встроенный
}

type RenderConfig struct {
	ChunkSize int  `yaml:"chunk_size"`
	TileSize  int  `yaml:"tile_size"`
	Prime     bool `yaml:"prime"`
}

type SimConfig struct {
	TickRate        int `yaml:"tick_rate"`
	MaxCatchUpSteps int `yaml:"max_catch_up_steps"`
}

// Step возвращает длительность одного шага симуляции
func (s SimConfig) Step() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

type PlayerConfig struct {
	Name    string         `yaml:"name"`
	X       float64        `yaml:"x"`
	Y       float64        `yaml:"y"`
	Width   float64        `yaml:"width"`
	Height  float64        `yaml:"height"`
	Physics physics.Tuning `yaml:"physics"`
}

type ServerConfig struct {
	DebugPort   int `yaml:"debug_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type EventBusConfig struct {
	URL           string `yaml:"url"` // "" - шина в памяти
	Stream        string `yaml:"stream"`
	Retention     int    `yaml:"retention_hours"`
	CompressAbove int    `yaml:"compress_above_bytes"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"` // писать логи в каталог logs
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Width:       100,
			Height:      100,
			Seed:        1,
			Generator:   "noise",
			FlatSurface: 30,
		},
		Render: RenderConfig{
			ChunkSize: 8,
			TileSize:  20,
			Prime:     true,
		},
		Sim: SimConfig{
			TickRate:        60,
			MaxCatchUpSteps: 5,
		},
		Player: PlayerConfig{
			Name:    "player",
			X:       0.5,
			Y:       0.5,
			Width:   1.5,
			Height:  1.5,
			Physics: physics.DefaultTuning(),
		},
		EventBus: EventBusConfig{
			Stream:        "TILESIM",
			Retention:     24,
			CompressAbove: 512,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tilesim",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetDebugPort возвращает порт отладочного HTTP API с поддержкой fallback значений
func (s *ServerConfig) GetDebugPort() int {
	return getPortWithEnvFallback(s.DebugPort, "GAME_DEBUG_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", путь берётся из ENV GAME_CONFIG; без него возвращается Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.Render.ChunkSize <= 0 || c.Render.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("render chunk_size and tile_size must be positive"))
	}
	if c.Sim.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("sim tick_rate must be positive"))
	}
	if c.Sim.MaxCatchUpSteps <= 0 {
		errs = append(errs, fmt.Errorf("sim max_catch_up_steps must be positive"))
	}
	if c.Player.Width <= 0 || c.Player.Height <= 0 {
		errs = append(errs, fmt.Errorf("player size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
