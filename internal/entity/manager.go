// Package entity хранит сущности карты и продвигает их тела каждый тик.
package entity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/tile-sim/internal/physics"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/google/uuid"
)

var (
	// ErrNotFound - сущность не найдена
	ErrNotFound = errors.New("entity: not found")
	// ErrDuplicateName - имя уже занято другой сущностью
	ErrDuplicateName = errors.New("entity: duplicate name")
	// ErrAmbiguousRef - указаны одновременно ID и имя
	ErrAmbiguousRef = errors.New("entity: both id and name given")
	// ErrEmptyRef - не указаны ни ID, ни имя
	ErrEmptyRef = errors.New("entity: neither id nor name given")
)

// SpawnOptions описывает новую сущность
type SpawnOptions struct {
	Name     string
	Type     EntityType
	Position vec.Vec2Float
	Size     vec.Vec2Float
	Tuning   physics.Tuning
	Lifetime time.Duration
}

// Manager управляет всеми сущностями карты. Порядок обхода сущностей
// совпадает с порядком появления, поэтому шаг симуляции детерминирован.
type Manager struct {
	entities map[uuid.UUID]*Entity // Хранилище всех сущностей
	byName   map[string]uuid.UUID  // Индекс по имени
	order    []uuid.UUID           // Порядок появления
	mu       sync.RWMutex
}

// NewManager создаёт пустой менеджер сущностей
func NewManager() *Manager {
	return &Manager{
		entities: make(map[uuid.UUID]*Entity),
		byName:   make(map[string]uuid.UUID),
	}
}

// Spawn создаёт сущность. Пустое имя допустимо, непустое должно быть уникальным.
func (m *Manager) Spawn(opts SpawnOptions) (*Entity, error) {
	if opts.Size.X <= 0 || opts.Size.Y <= 0 {
		return nil, fmt.Errorf("entity: invalid size %.2fx%.2f", opts.Size.X, opts.Size.Y)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Name != "" {
		if _, taken := m.byName[opts.Name]; taken {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, opts.Name)
		}
	}

	e := &Entity{
		ID:       uuid.New(),
		Name:     opts.Name,
		Type:     opts.Type,
		Body:     physics.NewBody(opts.Position, opts.Size, opts.Tuning),
		Lifetime: opts.Lifetime,
	}
	m.entities[e.ID] = e
	m.order = append(m.order, e.ID)
	if e.Name != "" {
		m.byName[e.Name] = e.ID
	}
	return e, nil
}

// Get возвращает сущность по ID
func (m *Manager) Get(id uuid.UUID) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// ByName возвращает сущность по имени
func (m *Manager) ByName(name string) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.entities[id], true
}

// Lookup находит сущность по ID или по имени. Ровно один из способов
// должен быть указан.
func (m *Manager) Lookup(id *uuid.UUID, name string) (*Entity, error) {
	switch {
	case id != nil && name != "":
		return nil, ErrAmbiguousRef
	case id != nil:
		if e, ok := m.Get(*id); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	case name != "":
		if e, ok := m.ByName(name); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	default:
		return nil, ErrEmptyRef
	}
}

// All возвращает сущности в порядке появления
func (m *Manager) All() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entity, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entities[id])
	}
	return out
}

// Len возвращает число сущностей
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// SetIntent задаёт намерения движения сущности
func (m *Manager) SetIntent(id uuid.UUID, intent physics.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	e.Body.Intent = intent
	return nil
}

// Despawn удаляет сущность
func (m *Manager) Despawn(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return false
	}
	m.removeLocked(map[uuid.UUID]struct{}{id: {}})
	return true
}

// AnyOverlap возвращает true, если хотя бы одна сущность удовлетворяет test
func (m *Manager) AnyOverlap(test func(r vec.Rect) bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if test(m.entities[id].Body.Rect()) {
			return true
		}
	}
	return false
}

// Step продвигает все тела на dt, затем удаляет сущности с истёкшим временем
// жизни. Возвращает удалённые сущности.
func (m *Manager) Step(dt time.Duration, c physics.Collider) []*Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Сначала собираем истёкшие, потом удаляем: список не меняется во время обхода
	expired := make(map[uuid.UUID]struct{})
	for _, id := range m.order {
		e := m.entities[id]
		e.Body.Step(dt, c)
		e.Age += dt
		if e.Expired() {
			expired[id] = struct{}{}
		}
	}
	if len(expired) == 0 {
		return nil
	}

	removed := make([]*Entity, 0, len(expired))
	for _, id := range m.order {
		if _, ok := expired[id]; ok {
			removed = append(removed, m.entities[id])
		}
	}
	m.removeLocked(expired)
	return removed
}

// removeLocked фильтрует порядок и индексы; вызывается под m.mu
func (m *Manager) removeLocked(ids map[uuid.UUID]struct{}) {
	kept := m.order[:0]
	for _, id := range m.order {
		if _, drop := ids[id]; drop {
			e := m.entities[id]
			if e.Name != "" {
				delete(m.byName, e.Name)
			}
			delete(m.entities, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// GetStats возвращает статистику по сущностям
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["total_entities"] = len(m.entities)

	typeStats := make(map[string]int)
	falling := 0
	for _, e := range m.entities {
		typeStats[e.Type.String()]++
		if e.Body.Falling {
			falling++
		}
	}
	stats["entity_types"] = typeStats
	stats["falling"] = falling
	return stats
}
