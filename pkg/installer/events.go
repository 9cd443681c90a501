package installer

import (
	"sync"

	"github.com/rs/zerolog"
)

// defaultSubscriberBuffer bounds each subscriber's event queue. A slow
// consumer drops events rather than stalling the install.
const defaultSubscriberBuffer = 64

// Broadcaster fans install events out to subscribers. A full subscriber
// buffer drops progress events but never a terminal event, so no
// subscriber can miss a run's outcome.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan ProgressEvent
	nextID int
	closed bool
	log    zerolog.Logger
}

// NewBroadcaster creates an event broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]chan ProgressEvent),
		log:  log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a consumer and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe or when the
// broadcaster shuts down.
func (b *Broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressEvent, defaultSubscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Delivery never blocks:
// a slow subscriber loses progress events once its buffer fills, while a
// terminal event evicts the oldest queued event to make room, so every
// subscriber still observes the run's outcome.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		if !ev.Kind.IsTerminal() {
			b.log.Warn().
				Int("subscriber", id).
				Str("kind", string(ev.Kind)).
				Str("step", ev.Step).
				Msg("subscriber buffer full, event dropped")
			continue
		}

		// Publish is the only sender and it holds the mutex, so
		// evicting one queued event always frees a slot.
		for delivered := false; !delivered; {
			select {
			case ch <- ev:
				delivered = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
		b.log.Warn().
			Int("subscriber", id).
			Str("kind", string(ev.Kind)).
			Msg("subscriber buffer full, oldest event evicted for terminal event")
	}
}

// Close shuts the broadcaster down and closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
