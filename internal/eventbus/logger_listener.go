package eventbus

import (
	"context"

	"github.com/annel0/tile-sim/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	log := logging.GetComponentLogger("events")
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		if ev.EventType == EventTypeBlockChanged {
			if bc, err := DecodeBlockChanged(ev); err == nil {
				log.Debug("[EventBus] %s блок (%d,%d) %d→%d, клеток освещения: %d, encoding=%s",
					ev.ID, bc.X, bc.Y, bc.OldID, bc.NewID, len(bc.Changed), ev.Metadata["encoding"])
				return
			}
		}
		log.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
