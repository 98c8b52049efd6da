// Package sim владеет миром: сеткой, освещением, кэшем отрисовки и
// сущностями. Все изменения выполняются в одной горутине симуляции, другие
// горутины обращаются к миру только через Do.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tile-sim/internal/entity"
	"github.com/annel0/tile-sim/internal/eventbus"
	"github.com/annel0/tile-sim/internal/logging"
	"github.com/annel0/tile-sim/internal/metrics"
	"github.com/annel0/tile-sim/internal/observability"
	"github.com/annel0/tile-sim/internal/render"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world"
	"github.com/annel0/tile-sim/internal/world/block"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrOccupied - твёрдый блок нельзя поставить поверх сущности
	ErrOccupied = errors.New("sim: cell is occupied by an entity")
	// ErrStopped - симуляция остановлена
	ErrStopped = errors.New("sim: stopped")
)

// EventSource - значение Envelope.Source для событий симуляции
const EventSource = "sim"

// Options - параметры симуляции
type Options struct {
	Step            time.Duration     // длительность одного шага
	MaxCatchUpSteps int               // не больше стольких шагов за один Advance
	Bus             eventbus.EventBus // nil - события не публикуются
	CompressAbove   int               // порог сжатия payload событий, байт
	Metrics         *metrics.Metrics
}

// request - функция, которую нужно выполнить в горутине симуляции
type request struct {
	fn   func()
	done chan struct{}
}

// Simulation - мир и его шаг с фиксированным временем
type Simulation struct {
	grid     *world.Grid
	cache    *render.ChunkCache
	entities *entity.Manager
	opts     Options

	air    block.ID
	hasAir bool

	acc     time.Duration
	tick    uint64
	dropped uint64

	requests chan request
	stopped  chan struct{}

	log    *logging.Logger
	tracer trace.Tracer
}

// New собирает симуляцию. Кэш (если есть) подписывается на изменения сетки.
func New(grid *world.Grid, cache *render.ChunkCache, entities *entity.Manager, opts Options) (*Simulation, error) {
	if opts.Step <= 0 {
		return nil, fmt.Errorf("sim: step must be positive, got %v", opts.Step)
	}
	if opts.MaxCatchUpSteps <= 0 {
		return nil, fmt.Errorf("sim: max catch-up steps must be positive, got %d", opts.MaxCatchUpSteps)
	}
	if entities == nil {
		entities = entity.NewManager()
	}

	s := &Simulation{
		grid:     grid,
		cache:    cache,
		entities: entities,
		opts:     opts,
		requests: make(chan request),
		stopped:  make(chan struct{}),
		log:      logging.GetComponentLogger("sim"),
		tracer:   observability.Tracer(),
	}
	if bt, ok := grid.Registry().ByName(block.AirName); ok {
		s.air, s.hasAir = bt.ID, true
	}
	if cache != nil {
		grid.AddInvalidator(cache)
	}
	return s, nil
}

// Grid возвращает сетку мира
func (s *Simulation) Grid() *world.Grid { return s.grid }

// Cache возвращает кэш отрисовки (может быть nil)
func (s *Simulation) Cache() *render.ChunkCache { return s.cache }

// Entities возвращает менеджер сущностей
func (s *Simulation) Entities() *entity.Manager { return s.entities }

// Tick возвращает число выполненных шагов
func (s *Simulation) Tick() uint64 { return s.tick }

// Dropped возвращает число шагов, отброшенных догоняющим циклом
func (s *Simulation) Dropped() uint64 { return s.dropped }

// StepDuration возвращает длительность шага
func (s *Simulation) StepDuration() time.Duration { return s.opts.Step }

// Advance добавляет прошедшее время и выполняет накопившиеся шаги, не больше
// MaxCatchUpSteps. Лишнее время отбрасывается. Возвращает число шагов.
func (s *Simulation) Advance(elapsed time.Duration) int {
	if elapsed > 0 {
		s.acc += elapsed
	}
	steps := int(s.acc / s.opts.Step)
	if steps > s.opts.MaxCatchUpSteps {
		drop := steps - s.opts.MaxCatchUpSteps
		s.dropped += uint64(drop)
		s.acc -= time.Duration(drop) * s.opts.Step
		s.opts.Metrics.StepsDropped(drop)
		s.log.Warn("⏱️ Симуляция не успевает: отброшено %d шагов", drop)
		steps = s.opts.MaxCatchUpSteps
	}
	for i := 0; i < steps; i++ {
		s.step()
		s.acc -= s.opts.Step
	}
	return steps
}

// step выполняет один шаг: тела сущностей и удаление истёкших
func (s *Simulation) step() {
	start := time.Now()
	removed := s.entities.Step(s.opts.Step, s.grid)
	for _, e := range removed {
		s.log.Debug("Сущность %s (%s) удалена: время жизни истекло", e.ID, e.Type)
	}
	s.tick++
	s.opts.Metrics.Tick(time.Since(start))
	s.opts.Metrics.SetEntities(s.entities.Len())
}

// Run крутит симуляцию с фиксированным шагом и выполняет запросы Do между
// шагами. Возвращается при отмене ctx.
func (s *Simulation) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticker := time.NewTicker(s.opts.Step)
	defer ticker.Stop()
	last := time.Now()

	s.log.Info("▶️ Симуляция запущена: шаг %v, до %d шагов за раз", s.opts.Step, s.opts.MaxCatchUpSteps)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("⏹️ Симуляция остановлена на тике %d", s.tick)
			return ctx.Err()
		case req := <-s.requests:
			req.fn()
			close(req.done)
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

// Do выполняет fn в горутине симуляции между шагами и ждёт завершения.
// Пока fn не принят к выполнению, отмена ctx прерывает ожидание.
func (s *Simulation) Do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// SetBlock меняет блок, пересчитывает освещение, инвалидирует кэш и
// публикует BlockChanged. Вызывается только из горутины симуляции
// (внутри Do или до Run).
func (s *Simulation) SetBlock(ctx context.Context, x, y int, id block.ID) ([]vec.Vec2, error) {
	ctx, span := s.tracer.Start(ctx, "sim.SetBlock", trace.WithAttributes(
		attribute.Int("block.x", x),
		attribute.Int("block.y", y),
		attribute.Int("block.id", int(id)),
	))
	defer span.End()

	old, _ := s.grid.GetBlock(x, y)
	changed, err := s.grid.SetBlock(x, y, id)
	if err != nil {
		s.opts.Metrics.BlockEdit("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("light.changed_cells", len(changed)))
	if old == id {
		s.opts.Metrics.BlockEdit("noop")
		return changed, nil
	}
	s.opts.Metrics.BlockEdit("ok")

	name := ""
	if bt, ok := s.grid.Registry().ByID(id); ok {
		name = bt.Name
	}
	s.log.Debug("🧱 Блок (%d,%d): %d → %s, изменено клеток освещения: %d", x, y, old, name, len(changed))
	s.publish(ctx, eventbus.BlockChanged{
		X: x, Y: y, OldID: old, NewID: id, NewName: name, Tick: s.tick, Changed: changed,
	})
	return changed, nil
}

// publish отправляет событие в шину; ошибки только логируются
func (s *Simulation) publish(ctx context.Context, ev eventbus.BlockChanged) {
	if s.opts.Bus == nil {
		return
	}
	env, err := eventbus.NewBlockChangedEnvelope(EventSource, ev, s.opts.CompressAbove)
	if err != nil {
		s.log.Error("Не удалось собрать событие: %v", err)
		return
	}
	if err := s.opts.Bus.Publish(ctx, env); err != nil {
		s.log.Warn("Событие %s не опубликовано: %v", env.ID, err)
		return
	}
	s.opts.Metrics.EventPublished(env.Metadata["encoding"] == eventbus.EncodingZstd)
}

// ToggleAction - что сделал Toggle
type ToggleAction string

const (
	ActionPlaced  ToggleAction = "placed"
	ActionRemoved ToggleAction = "removed"
)

// Toggle убирает твёрдый блок (ставит воздух) или ставит place в
// нетвёрдую клетку. Твёрдый блок не ставится поверх сущности.
// Вызывается только из горутины симуляции.
func (s *Simulation) Toggle(ctx context.Context, x, y int, place block.ID) (ToggleAction, []vec.Vec2, error) {
	if _, ok := s.grid.GetBlock(x, y); !ok {
		return "", nil, fmt.Errorf("%w: (%d,%d)", world.ErrOutOfBounds, x, y)
	}

	if s.grid.IsSolidBlock(x, y) {
		if !s.hasAir {
			return "", nil, fmt.Errorf("sim: catalog has no %q block: %w", block.AirName, world.ErrUnknownBlock)
		}
		changed, err := s.SetBlock(ctx, x, y, s.air)
		return ActionRemoved, changed, err
	}

	if s.grid.Registry().IsSolid(place) {
		cell := vec.Vec2{X: x, Y: y}
		if s.entities.AnyOverlap(func(r vec.Rect) bool { return s.grid.RectColliding(r, &cell) }) {
			s.opts.Metrics.BlockEdit("rejected")
			return "", nil, fmt.Errorf("%w: (%d,%d)", ErrOccupied, x, y)
		}
	}
	changed, err := s.SetBlock(ctx, x, y, place)
	return ActionPlaced, changed, err
}
