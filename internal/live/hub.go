package live

import "sync"

// Hub is the in-process subscriber registry. Dashboards and tests
// subscribe per site and receive every count event for that site.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan CountEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan CountEvent]struct{})}
}

// Subscribe registers a buffered channel for a site's events. The returned
// cancel function removes the subscription and closes the channel.
func (h *Hub) Subscribe(siteID string) (<-chan CountEvent, func()) {
	ch := make(chan CountEvent, 16)

	h.mu.Lock()
	if h.subs[siteID] == nil {
		h.subs[siteID] = make(map[chan CountEvent]struct{})
	}
	h.subs[siteID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[siteID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, siteID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// PublishCounts delivers the event to every subscriber of its site. A
// subscriber with a full buffer misses the event; a slow dashboard must
// never stall ingest.
func (h *Hub) PublishCounts(event CountEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.SiteID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}
