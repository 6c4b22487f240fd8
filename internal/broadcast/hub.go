package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/XavierBriggs/Apollo/internal/cache"
)

// subscriberBuffer absorbs short bursts; a subscriber that falls this far
// behind starts losing events rather than blocking the hub.
const subscriberBuffer = 8

// Hub relays cache refresh events to in-process subscribers. It listens
// on the shared Redis channel so every instance behind a load balancer
// sees cycles completed by any of them.
type Hub struct {
	store *cache.Store

	mu          sync.Mutex
	subscribers map[chan cache.RefreshEvent]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHub(store *cache.Store) *Hub {
	return &Hub{
		store:       store,
		subscribers: make(map[chan cache.RefreshEvent]struct{}),
		stopChan:    make(chan struct{}),
	}
}

// Start begins relaying Redis refresh events until Stop or context
// cancellation.
func (h *Hub) Start(ctx context.Context) {
	sub := h.store.SubscribeRefresh(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event cache.RefreshEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					fmt.Printf("⚠ broadcast: bad refresh payload: %v\n", err)
					continue
				}
				h.publish(event)

			case <-h.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop disconnects from Redis and closes every subscriber channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (h *Hub) Subscribe() (<-chan cache.RefreshEvent, func()) {
	ch := make(chan cache.RefreshEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// publish delivers an event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *Hub) publish(event cache.RefreshEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports current listeners, for the health endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
