package block

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownBlock возвращается для ID или имени, отсутствующего в каталоге
	ErrUnknownBlock = errors.New("unknown block")
	// ErrAmbiguousRef - заданы одновременно ID и имя блока
	ErrAmbiguousRef = errors.New("block reference must set either id or name, not both")
	// ErrEmptyRef - не задан ни ID, ни имя блока
	ErrEmptyRef = errors.New("block reference must set id or name")
)

// Registry - неизменяемый каталог типов блоков. Создаётся явно и передаётся по
// указателю всем компонентам, которым нужны свойства блоков.
type Registry struct {
	byID       map[ID]*BlockType
	byName     map[string]*BlockType
	ids        []ID
	minOpacity int
}

// NewRegistry проверяет описания блоков и строит каталог
func NewRegistry(types ...BlockType) (*Registry, error) {
	if len(types) == 0 {
		return nil, errors.New("registry: no block types")
	}

	r := &Registry{
		byID:       make(map[ID]*BlockType, len(types)),
		byName:     make(map[string]*BlockType, len(types)),
		minOpacity: -1,
	}

	for i := range types {
		bt := types[i]
		if bt.Name == "" {
			return nil, fmt.Errorf("registry: block %d: empty name", bt.ID)
		}
		if _, dup := r.byID[bt.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate block id %d", bt.ID)
		}
		if _, dup := r.byName[bt.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate block name %q", bt.Name)
		}
		if bt.Brightness < 0 || bt.Brightness > MaxLight {
			return nil, fmt.Errorf("registry: block %q: brightness %d out of [0,%d]", bt.Name, bt.Brightness, MaxLight)
		}
		if bt.Opacity < 0 {
			return nil, fmt.Errorf("registry: block %q: negative opacity %d", bt.Name, bt.Opacity)
		}

		stored := &bt
		r.byID[bt.ID] = stored
		r.byName[bt.Name] = stored
		r.ids = append(r.ids, bt.ID)
		if r.minOpacity < 0 || bt.Opacity < r.minOpacity {
			r.minOpacity = bt.Opacity
		}
	}

	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// ByID возвращает тип блока по идентификатору
func (r *Registry) ByID(id ID) (*BlockType, bool) {
	bt, ok := r.byID[id]
	return bt, ok
}

// ByName возвращает тип блока по имени
func (r *Registry) ByName(name string) (*BlockType, bool) {
	bt, ok := r.byName[name]
	return bt, ok
}

// MustID возвращает ID блока по имени и паникует, если его нет.
// Используется для блоков, наличие которых гарантирует вызывающий код.
func (r *Registry) MustID(name string) ID {
	bt, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("block %q is not registered", name))
	}
	return bt.ID
}

// Resolve находит блок либо по ID, либо по имени. Одновременное указание обоих
// ключей - ошибка использования, она не разрешается молча.
func (r *Registry) Resolve(id *ID, name string) (*BlockType, error) {
	switch {
	case id != nil && name != "":
		return nil, ErrAmbiguousRef
	case id != nil:
		if bt, ok := r.byID[*id]; ok {
			return bt, nil
		}
		return nil, fmt.Errorf("%w: id %d", ErrUnknownBlock, *id)
	case name != "":
		if bt, ok := r.byName[name]; ok {
			return bt, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
	default:
		return nil, ErrEmptyRef
	}
}

// Contains проверяет, является ли ID допустимым идентификатором блока
func (r *Registry) Contains(id ID) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs возвращает идентификаторы всех блоков по возрастанию
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.ids))
	copy(out, r.ids)
	return out
}

// MinOpacity возвращает наименьшую непрозрачность среди всех блоков.
// От неё зависит радиус локального пересчёта освещения.
func (r *Registry) MinOpacity() int {
	return r.minOpacity
}

// IsSolid возвращает true для известного твёрдого блока
func (r *Registry) IsSolid(id ID) bool {
	bt, ok := r.byID[id]
	return ok && bt.Solid
}
