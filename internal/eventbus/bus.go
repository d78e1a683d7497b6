package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Well-known event types published by the daemon.
const (
	TypeTickDone        = "scheduler.tick_done"
	TypeDeliverySent    = "delivery.sent"
	TypeDeliveryFailed  = "delivery.failed"
	TypeConfigReloaded  = "config.reloaded"
	TypeEntitiesLoaded  = "entities.loaded"
	TypeLedgerPruned    = "ledger.pruned"
	TypeCheckinRecorded = "checkin.recorded"
)

// Event is an in-memory signal used to decouple the scheduler, the delivery
// pipeline and the app-level log subscriber.
//
// Publish never blocks; slow subscribers lose events. Data should be small
// and JSON-serializable (the app logs it as-is).
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// Drop when full. A concurrent unsubscribe may close the channel
		// under us; the recover keeps Publish safe in that window.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
