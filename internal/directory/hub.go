package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/internal/events"
)

// Lister projects the full conversation directory of one user, sorted by
// updated_at descending. Implemented by repository.ConversationRepo.
type Lister interface {
	ListViews(ctx context.Context, uid string) ([]*entity.ConversationView, error)
}

// Observer receives full directory snapshots. Delivery is at-least-once:
// observers must tolerate redundant snapshots carrying no visible change.
type Observer func(snapshot []*entity.ConversationView)

// Hub is the publish-subscribe component behind live conversation lists.
// It owns its subscriber registry and lifecycle; consumers receive it by
// injection rather than through any ambient global.
//
// Every relevant change triggers a full re-projection per subscribed user.
// Projection failures are retried with exponential backoff while the
// subscriber keeps its last good snapshot; they are never surfaced as a
// hard failure.
type Hub struct {
	lister       Lister
	retryInitial time.Duration
	retryMax     time.Duration

	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription // uid -> subId -> sub
	closed bool
}

// NewHub creates a new Hub
func NewHub(lister Lister, retryInitial, retryMax time.Duration) *Hub {
	if retryInitial <= 0 {
		retryInitial = 500 * time.Millisecond
	}
	if retryMax < retryInitial {
		retryMax = 30 * time.Second
	}
	return &Hub{
		lister:       lister,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		subs:         make(map[string]map[string]*Subscription),
	}
}

// HandleEvent adapts the hub to the event bus: any change to a
// conversation re-projects the directory of each of its members.
func (h *Hub) HandleEvent(ev *events.Event) {
	h.Notify(ev.MemberIds...)
}

// Subscribe registers an observer for a user's directory. An initial
// authoritative snapshot is emitted promptly, even when it is empty. The
// returned subscription's Cancel is safe to invoke any number of times.
func (h *Hub) Subscribe(ctx context.Context, uid string, observer Observer) *Subscription {
	sub := &Subscription{
		id:       uuid.New().String(),
		uid:      uid,
		hub:      h,
		observer: observer,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		// Late subscription on a closed hub gets its empty snapshot and
		// nothing else.
		observer([]*entity.ConversationView{})
		sub.cancelOnce.Do(func() { close(sub.stop); sub.closed = true })
		return sub
	}
	if h.subs[uid] == nil {
		h.subs[uid] = make(map[string]*Subscription)
	}
	h.subs[uid][sub.id] = sub
	h.mu.Unlock()

	sub.kick <- struct{}{}
	go sub.loop(ctx)

	log.CtxDebug(ctx, "directory subscription added: uid=%s, sub_id=%s", uid, sub.id)
	return sub
}

// Notify schedules a directory re-projection for each listed user that has
// live subscriptions. Coalesces with refreshes already pending.
func (h *Hub) Notify(uids ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, uid := range uids {
		for _, sub := range h.subs[uid] {
			select {
			case sub.kick <- struct{}{}:
			default:
				// refresh already pending, snapshot will cover this change
			}
		}
	}
}

// remove detaches a subscription from the registry
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.subs[sub.uid]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(h.subs, sub.uid)
		}
	}
}

// Close cancels every live subscription
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, m := range h.subs {
		for _, sub := range m {
			all = append(all, sub)
		}
	}
	h.subs = make(map[string]map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range all {
		sub.Cancel()
	}
}
