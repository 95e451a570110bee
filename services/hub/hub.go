// Package hub notifies subscribers when a channel's cached schedule changes.
package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"guiatv/models"
)

// Callback receives the channel id and its new program list after a
// successful cache update.
type Callback func(channelID string, programs []models.Program)

// Hub is a minimal publish/subscribe mechanism. Subscriber panics are
// isolated; a misbehaving subscriber never breaks the cache-update path.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Callback
}

func New() *Hub {
	return &Hub{subs: make(map[string]Callback)}
}

// Subscribe registers a callback and returns a token for Unsubscribe.
func (h *Hub) Subscribe(cb Callback) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.subs[id] = cb
	h.mu.Unlock()
	return id
}

// Unsubscribe removes the subscriber registered under the given token.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Publish invokes every subscriber with the updated schedule.
func (h *Hub) Publish(channelID string, programs []models.Program) {
	h.mu.RLock()
	callbacks := make([]Callback, 0, len(h.subs))
	for _, cb := range h.subs {
		callbacks = append(callbacks, cb)
	}
	h.mu.RUnlock()

	for _, cb := range callbacks {
		invoke(cb, channelID, programs)
	}
}

func invoke(cb Callback, channelID string, programs []models.Program) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[hub] subscriber panic for channel %s: %v", channelID, r)
		}
	}()
	cb(channelID, programs)
}
