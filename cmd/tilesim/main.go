package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/tile-sim/internal/api"
	"github.com/annel0/tile-sim/internal/config"
	"github.com/annel0/tile-sim/internal/eventbus"
	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/middleware"
	"github.com/annel0/tile-sim/internal/observability"
	"github.com/annel0/tile-sim/internal/sim"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию GAME_CONFIG)")
	level := flag.String("level", "", "уровень логов в консоли, перекрывает logging.level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	logging.Info("🎮 Запуск tile-sim: карта %dx%d, %d Гц", cfg.World.Width, cfg.World.Height, cfg.Sim.TickRate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bus, err := newBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn("Ошибка закрытия шины событий: %v", err)
		}
	}()
	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.Start(5 * time.Second)
	defer exporter.Stop()
	if sub, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("Слушатель событий не запущен: %v", err)
	} else {
		defer sub.Unsubscribe()
	}

	world, err := sim.FromConfig(cfg, bus, m)
	if err != nil {
		return err
	}

	debugAPI := api.NewServer(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.GetDebugPort()),
		Sim:        world,
		Bus:        bus,
		Follow:     cfg.Player.Name,
		Registerer: registry,
	})
	metricsSrv := newMetricsServer(cfg.Server.GetMetricsPort(), registry)

	errCh := make(chan error, 3)
	go func() { errCh <- world.Run(ctx) }()
	go func() { errCh <- debugAPI.Start() }()
	go func() {
		logging.Info("📊 Метрики Prometheus: http://localhost%s/metrics", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("сервер метрик: %w", err)
			return
		}
		errCh <- nil
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Server.GetDebugPort())
	logging.Info("   🖼️  Снимок карты: http://localhost:%d/api/view.png", cfg.Server.GetDebugPort())

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал, завершение работы...")
	case runErr = <-errCh:
		logging.Error("❌ Сервис остановился: %v", runErr)
		stop()
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := debugAPI.Stop(sctx); err != nil {
		logging.Error("❌ Ошибка остановки API: %v", err)
	}
	if err := metricsSrv.Shutdown(sctx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}

	logging.Info("👋 Симуляция остановлена на тике %d", world.Tick())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func setupLogging(cfg config.LoggingConfig) error {
	lvl, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if cfg.File {
		if err := logging.InitDefaultLogger("tilesim"); err != nil {
			return fmt.Errorf("ошибка инициализации логирования: %w", err)
		}
		logging.GetLoggerManager().SetDirectory("logs")
	}
	logging.SetDefaultLevel(lvl)
	return nil
}

// newBus - JetStream при заданном URL, иначе шина в памяти процесса
func newBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий в памяти процесса")
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("шина событий: %w", err)
	}
	logging.Info("📨 Шина событий JetStream: %s, поток %s", cfg.URL, cfg.Stream)
	return bus, nil
}

func newMetricsServer(port int, g prometheus.Gatherer) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	middleware.RegisterMetricsEndpoint(r, g)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
