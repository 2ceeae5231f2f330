package daemon

import (
	"sync"

	"github.com/aigent-dev/aigent/pkg/models"
)

// subscriberBuffer bounds each Subscribe connection's event backlog.
// A slow subscriber drops its oldest pending event and receives a
// Lagged marker rather than blocking the broadcaster.
const subscriberBuffer = 256

type subscriber struct {
	ch chan models.Event
}

// Hub fans broadcast events out to every Subscribe connection. It is
// the daemon's lock-free broadcast channel: Broadcast never blocks on
// a slow reader. A Hub is created once and shared between the Server
// and the ApprovalGate handed to the tool Executor, since the gate
// must broadcast ApprovalRequest events before the Executor (and
// therefore the Server wrapping it) necessarily exists yet.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{ch: make(chan models.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	close(s.ch)
}

// Broadcast publishes e to every current subscriber. It satisfies
// reflection.Broadcaster and proactive.Broadcaster.
func (h *Hub) Broadcast(e models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			// Drop the two oldest pending events to make room for e and
			// a Lagged marker, then signal the subscriber it lagged,
			// per the spec's backpressure rule.
			for i := 0; i < 2; i++ {
				select {
				case <-s.ch:
				default:
				}
			}
			select {
			case s.ch <- e:
			default:
			}
			select {
			case s.ch <- models.Event{Kind: models.EvtLagged}:
			default:
			}
		}
	}
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
