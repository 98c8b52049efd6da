// Package metrics содержит Prometheus-метрики симуляции: освещение, кэш
// чанков, тики и сущности. Все методы допускают nil-получатель, поэтому
// компоненты можно собирать без метрик (в тестах и утилитах).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tilesim"

// Metrics - набор коллекторов симуляции
type Metrics struct {
	lightUpdates     *prometheus.CounterVec
	lightDuration    *prometheus.HistogramVec
	lightCells       prometheus.Histogram
	chunkHits        prometheus.Counter
	chunkMisses      prometheus.Counter
	chunkRender      prometheus.Histogram
	chunksDropped    prometheus.Counter
	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	stepsDropped     prometheus.Counter
	entities         prometheus.Gauge
	blockEdits       *prometheus.CounterVec
	eventsPublished  prometheus.Counter
	eventsCompressed prometheus.Counter
}

// New создаёт коллекторы и регистрирует их в reg. При reg == nil метрики
// работают, но никуда не экспортируются.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lightUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "updates_total",
			Help:      "Число пересчётов освещения (mode=incremental|full).",
		}, []string{"mode"}),
		lightDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "update_duration_seconds",
			Help:      "Длительность пересчёта освещения.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"mode"}),
		lightCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "changed_cells",
			Help:      "Размер набора изменённых клеток после пересчёта.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}),
		chunkHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "chunk_hits_total",
			Help:      "Чанки, взятые из кэша.",
		}),
		chunkMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "chunk_misses_total",
			Help:      "Чанки, отрисованные заново.",
		}),
		chunkRender: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "chunk_render_seconds",
			Help:      "Время отрисовки одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		chunksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "chunks_invalidated_total",
			Help:      "Чанки, удалённые из кэша после изменения освещения.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "ticks_total",
			Help:      "Выполненные шаги симуляции.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного шага симуляции.",
			Buckets:   prometheus.DefBuckets,
		}),
		stepsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "steps_dropped_total",
			Help:      "Шаги, отброшенные из-за ограничения догоняющего цикла.",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "entities",
			Help:      "Текущее число сущностей на карте.",
		}),
		blockEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "block_edits_total",
			Help:      "Запросы изменения блоков по результату.",
		}, []string{"result"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "События BlockChanged, отправленные в шину.",
		}),
		eventsCompressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "compressed_total",
			Help:      "События, payload которых сжат zstd.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.lightUpdates, m.lightDuration, m.lightCells,
			m.chunkHits, m.chunkMisses, m.chunkRender, m.chunksDropped,
			m.ticks, m.tickDuration, m.stepsDropped, m.entities, m.blockEdits,
			m.eventsPublished, m.eventsCompressed,
		)
	}
	return m
}

// LightUpdated фиксирует пересчёт освещения
func (m *Metrics) LightUpdated(d time.Duration, cells int, full bool) {
	if m == nil {
		return
	}
	mode := "incremental"
	if full {
		mode = "full"
	}
	m.lightUpdates.WithLabelValues(mode).Inc()
	m.lightDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.lightCells.Observe(float64(cells))
}

// ChunkHit - чанк взят из кэша
func (m *Metrics) ChunkHit() {
	if m == nil {
		return
	}
	m.chunkHits.Inc()
}

// ChunkMiss - чанк отрисован за d
func (m *Metrics) ChunkMiss(d time.Duration) {
	if m == nil {
		return
	}
	m.chunkMisses.Inc()
	m.chunkRender.Observe(d.Seconds())
}

// ChunksInvalidated - из кэша удалено n чанков
func (m *Metrics) ChunksInvalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksDropped.Add(float64(n))
}

// Tick - выполнен шаг симуляции длительностью d
func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// StepsDropped - отброшено n шагов
func (m *Metrics) StepsDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stepsDropped.Add(float64(n))
}

// SetEntities обновляет число сущностей
func (m *Metrics) SetEntities(n int) {
	if m == nil {
		return
	}
	m.entities.Set(float64(n))
}

// BlockEdit учитывает запрос изменения блока (ok, noop, rejected, error)
func (m *Metrics) BlockEdit(result string) {
	if m == nil {
		return
	}
	m.blockEdits.WithLabelValues(result).Inc()
}

// EventPublished учитывает отправленное событие
func (m *Metrics) EventPublished(compressed bool) {
	if m == nil {
		return
	}
	m.eventsPublished.Inc()
	if compressed {
		m.eventsCompressed.Inc()
	}
}
