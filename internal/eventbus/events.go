package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/google/uuid"
)

// ErrClosed - шина закрыта
var ErrClosed = errors.New("eventbus: closed")

// EventTypeBlockChanged - тип события изменения блока
const EventTypeBlockChanged = "BlockChanged"

// BlockChanged сообщает об изменении блока и клетках, освещение которых
// могло измениться
type BlockChanged struct {
	X       int        `json:"x"`
	Y       int        `json:"y"`
	OldID   block.ID   `json:"old_id"`
	NewID   block.ID   `json:"new_id"`
	NewName string     `json:"new_name"`
	Tick    uint64     `json:"tick"`
	Changed []vec.Vec2 `json:"changed"`
}

// NewBlockChangedEnvelope упаковывает событие в Envelope. Payload длиннее
// compressAbove байт сжимается zstd; compressAbove <= 0 отключает сжатие.
func NewBlockChangedEnvelope(source string, ev BlockChanged, compressAbove int) (*Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", EventTypeBlockChanged, err)
	}

	meta := map[string]string{"encoding": "json"}
	if compressAbove > 0 && len(data) > compressAbove {
		compressed, err := compressPayload(data)
		if err != nil {
			return nil, err
		}
		data = compressed
		meta["encoding"] = EncodingZstd
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: EventTypeBlockChanged,
		Version:   1,
		Priority:  3,
		Payload:   data,
		Metadata:  meta,
	}, nil
}

// DecodeBlockChanged извлекает событие из Envelope
func DecodeBlockChanged(env *Envelope) (BlockChanged, error) {
	var ev BlockChanged
	if env.EventType != EventTypeBlockChanged {
		return ev, fmt.Errorf("eventbus: expected %s, got %s", EventTypeBlockChanged, env.EventType)
	}
	data, err := env.PlainPayload()
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal %s: %w", EventTypeBlockChanged, err)
	}
	return ev, nil
}
