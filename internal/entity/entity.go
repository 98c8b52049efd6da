package entity

import (
	"time"

	"github.com/annel0/tile-sim/internal/physics"
	"github.com/google/uuid"
)

// EntityType представляет тип сущности
type EntityType uint8

const (
	EntityTypePlayer EntityType = iota
	EntityTypeCrate
	EntityTypeDebris
)

// String возвращает имя типа для API и логов
func (t EntityType) String() string {
	switch t {
	case EntityTypePlayer:
		return "player"
	case EntityTypeCrate:
		return "crate"
	case EntityTypeDebris:
		return "debris"
	default:
		return "unknown"
	}
}

// ParseEntityType разбирает имя типа
func ParseEntityType(s string) (EntityType, bool) {
	for _, t := range []EntityType{EntityTypePlayer, EntityTypeCrate, EntityTypeDebris} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Entity представляет сущность на карте: тело и время жизни
type Entity struct {
	ID       uuid.UUID     // Уникальный идентификатор
	Name     string        // Уникальное имя, может быть пустым
	Type     EntityType    // Тип сущности
	Body     *physics.Body // Физическое тело
	Lifetime time.Duration // 0 - живёт бесконечно
	Age      time.Duration // Сколько сущность уже существует
}

// Expired возвращает true, если время жизни сущности истекло
func (e *Entity) Expired() bool {
	return e.Lifetime > 0 && e.Age >= e.Lifetime
}
