package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/tile-sim/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "TILESIM", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, count")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Event sources filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 - no limit)")
		duration   = flag.Duration("for", 0, "Stop after this duration (0 - until Ctrl+C)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, filter, *limit)
	case "count":
		err = countEvents(ctx, bus, filter)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// tailEvents печатает новые события, пока не отменён ctx или не набран limit
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int) error {
	fmt.Printf("🎬 Tailing events (limit: %d)\n", limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		printEvent(ev)
		count++
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// countEvents считает события по типам до отмены ctx
func countEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter) error {
	var mu sync.Mutex
	counts := make(map[string]int)
	cells := 0
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		counts[ev.EventType]++
		if ev.EventType == eventbus.EventTypeBlockChanged {
			if bc, err := eventbus.DecodeBlockChanged(ev); err == nil {
				cells += len(bc.Changed)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Println("📊 Events by type:")
	for _, t := range types {
		fmt.Printf("  %s: %d events\n", t, counts[t])
	}
	fmt.Printf("Relit cells: %d\n", cells)
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s/%s [%s] priority=%d\n",
		ev.Timestamp.Format(timeFormat), ev.Source, ev.EventType, ev.ID, ev.Priority)

	if ev.EventType != eventbus.EventTypeBlockChanged {
		return
	}
	bc, err := eventbus.DecodeBlockChanged(ev)
	if err != nil {
		fmt.Printf("  ⚠️ %v\n", err)
		return
	}
	fmt.Printf("  Block: (%d,%d) %d → %d %s, tick %d, relit cells: %d\n",
		bc.X, bc.Y, bc.OldID, bc.NewID, bc.NewName, bc.Tick, len(bc.Changed))
}

// parseStringList разбирает список через запятую, пустые элементы пропускаются
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
