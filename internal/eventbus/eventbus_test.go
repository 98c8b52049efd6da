package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/tile-sim/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *Envelope) *Envelope {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
		return nil
	}
}

func TestMemoryBusDeliversByFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	blocks := make(chan *Envelope, 4)
	all := make(chan *Envelope, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventTypeBlockChanged}}, func(_ context.Context, ev *Envelope) {
		blocks <- ev
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, ev *Envelope) {
		all <- ev
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "1", EventType: "Other"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "2", EventType: EventTypeBlockChanged}))

	assert.Equal(t, "2", receive(t, blocks).ID)
	assert.Equal(t, "1", receive(t, all).ID)
	assert.Equal(t, "2", receive(t, all).ID)

	require.NoError(t, bus.Close())
	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(3), stats.Consumed)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	got := make(chan *Envelope, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, ev *Envelope) { got <- ev })
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "x"}))
	require.NoError(t, bus.Close())
	assert.Empty(t, got)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")

	err := bus.Publish(context.Background(), &Envelope{})
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		started <- struct{}{}
		<-release
	})
	require.NoError(t, err)

	// первое событие занимает обработчик, второе - буфер
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "a"}))
	<-started
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "b"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "c", Priority: 1}))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = bus.Publish(ctx, &Envelope{ID: "d", Priority: 9})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "важное событие ждёт места до отмены контекста")

	close(release)
	require.NoError(t, bus.Close())
}

func TestBlockChangedEnvelope(t *testing.T) {
	ev := BlockChanged{X: 3, Y: 4, OldID: 0, NewID: 2, NewName: "rock", Tick: 10,
		Changed: []vec.Vec2{{X: 3, Y: 4}, {X: 3, Y: 5}}}

	env, err := NewBlockChangedEnvelope("sim", ev, 0)
	require.NoError(t, err)
	assert.Equal(t, EventTypeBlockChanged, env.EventType)
	assert.Equal(t, "json", env.Metadata["encoding"])
	assert.NotEmpty(t, env.ID)

	decoded, err := DecodeBlockChanged(env)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestBlockChangedCompression(t *testing.T) {
	ev := BlockChanged{X: 1, Y: 1, NewID: 3}
	for x := 0; x < 40; x++ {
		for y := 0; y < 40; y++ {
			ev.Changed = append(ev.Changed, vec.Vec2{X: x, Y: y})
		}
	}

	plain, err := NewBlockChangedEnvelope("sim", ev, 0)
	require.NoError(t, err)
	env, err := NewBlockChangedEnvelope("sim", ev, 512)
	require.NoError(t, err)

	assert.Equal(t, EncodingZstd, env.Metadata["encoding"])
	assert.Less(t, len(env.Payload), len(plain.Payload))

	decoded, err := DecodeBlockChanged(env)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeBlockChanged(&Envelope{EventType: "Other"})
	assert.Error(t, err)

	_, err = DecodeBlockChanged(&Envelope{EventType: EventTypeBlockChanged, Payload: []byte("{"), Metadata: map[string]string{}})
	assert.Error(t, err)

	_, err = (&Envelope{Metadata: map[string]string{"encoding": "lz4"}}).PlainPayload()
	assert.Error(t, err)

	_, err = (&Envelope{Payload: []byte("not zstd"), Metadata: map[string]string{"encoding": EncodingZstd}}).PlainPayload()
	assert.Error(t, err)
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "1"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "2"}))

	prev := me.collect(Stats{})
	assert.Equal(t, uint64(2), prev.Published)
	me.collect(prev)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "eventbus_messages_published_total" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatal("метрика eventbus_messages_published_total не найдена")
}

func TestMetricsExporterStartStop(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()
	me := NewMetricsExporter(bus, nil)
	me.Start(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.NotPanics(t, me.Stop)
}

func TestLoggingListener(t *testing.T) {
	bus := NewMemoryBus(4)
	sub, err := StartLoggingListener(context.Background(), bus)
	require.NoError(t, err)
	require.NotNil(t, sub)

	env, err := NewBlockChangedEnvelope("sim", BlockChanged{X: 1}, 0)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), env))
	require.NoError(t, bus.Close())
	assert.Equal(t, uint64(1), bus.Metrics().Consumed)
}
