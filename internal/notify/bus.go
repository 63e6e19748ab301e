package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultBuffer = 64

// Bus is the in-process topic bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*Subscription]struct{}
	buffer int
}

// Subscription receives events published to one topic until closed.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	bus   *Bus
	topic Topic
	once  sync.Once
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{subs: make(map[Topic]map[*Subscription]struct{}), buffer: buffer}
}

func (b *Bus) Subscribe(topic Topic) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, ch: ch, bus: b, topic: topic}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[topic] = set
	}
	set[s] = struct{}{}
	return s
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.topic)
			}
		}
		close(s.ch)
	})
}

// Publish drops the event for any subscriber whose buffer is full.
func (b *Bus) Publish(_ context.Context, topic Topic, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[topic] {
		select {
		case s.ch <- ev:
		default:
			log.Warn().Str("module", "notify.bus").Str("topic", string(topic)).Str("event", string(ev.Type)).Msg("subscriber too slow, event dropped")
		}
	}
}

func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
