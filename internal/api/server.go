// Package api - отладочный HTTP API симуляции: запросы блоков и освещения,
// правка блоков, сущности, снимок экрана через кэш чанков и статистика.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/tile-sim/internal/eventbus"
	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/middleware"
	"github.com/annel0/tile-sim/internal/sim"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Размер снимка по умолчанию и максимальный, в блоках
const (
	DefaultViewWidth  = 40
	DefaultViewHeight = 30
	MaxViewTiles      = 256
)

// Config содержит конфигурацию отладочного сервера
type Config struct {
	Addr       string                // адрес для запуска сервера, ":8088"
	Sim        *sim.Simulation       // мир
	Bus        eventbus.EventBus     // шина событий для /api/stats, может быть nil
	Follow     string                // имя сущности, за которой следует /api/view.png
	Registerer prometheus.Registerer // nil - HTTP метрики не собираются
	Gatherer   prometheus.Gatherer   // nil - без /metrics
}

// Server - отладочный HTTP сервер
type Server struct {
	router  *gin.Engine
	http    *http.Server
	sim     *sim.Simulation
	bus     eventbus.EventBus
	follow  string
	process *ProcessMetrics
	log     *logging.Logger
}

// NewServer создаёт сервер и настраивает маршруты
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(otelgin.Middleware("tilesim_api"))
	router.Use(middleware.NewRequestLogger().Handler())
	if cfg.Registerer != nil {
		router.Use(middleware.NewPrometheusMiddleware("tilesim_api", cfg.Registerer).Handler())
	}
	if cfg.Gatherer != nil {
		middleware.RegisterMetricsEndpoint(router, cfg.Gatherer)
	}

	s := &Server{
		router:  router,
		sim:     cfg.Sim,
		bus:     cfg.Bus,
		follow:  cfg.Follow,
		process: NewProcessMetrics(),
		log:     logging.GetComponentLogger("api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/blocks/:x/:y", s.handleGetBlock)
		api.PUT("/blocks/:x/:y", s.handleSetBlock)
		api.POST("/blocks/:x/:y/toggle", s.handleToggleBlock)
		api.GET("/light/:x/:y", s.handleGetLight)

		api.GET("/entities", s.handleGetEntities)
		api.PUT("/entities/intent", s.handleSetIntent)

		api.GET("/view.png", s.handleView)
		api.GET("/stats", s.handleStats)
	}
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает сервер и блокируется до Stop
func (s *Server) Start() error {
	s.log.Info("🌐 Отладочный API слушает %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь активных запросов
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
