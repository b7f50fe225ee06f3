package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/coopquest/internal/session"
)

// Broker is an in-process pub/sub for room snapshots, keyed by invite code.
// It satisfies session.Notifier.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded room states for the given room.
func (b *Broker) Subscribe(code string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[chan []byte]struct{})
	}
	b.subs[code][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(code string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[code], ch)
	if len(b.subs[code]) == 0 {
		delete(b.subs, code)
	}
	b.mu.Unlock()
}

// Publish sends a snapshot to all subscribers of the given room.
func (b *Broker) Publish(code string, state session.RoomState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	b.publishRaw(code, data)
}

func (b *Broker) publishRaw(code string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[code] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports how many listeners a room has.
func (b *Broker) Subscribers(code string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[code])
}
