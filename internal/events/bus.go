package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/ecoloop/chatsync/pkg/constant"
)

// Event signals that a conversation changed in a way that affects the
// directory projection of the listed members.
type Event struct {
	ConversationId string   `json:"conversation_id"`
	MemberIds      []string `json:"member_ids"`
	Origin         string   `json:"origin"`
}

// Handler consumes conversation change events
type Handler func(ev *Event)

// Bus fans conversation change events out to registered handlers. With a
// Redis client it also bridges events across instances over pub/sub, so a
// directory subscription on one instance observes writes made on another.
// Handlers are registered explicitly by the owning component; there is no
// ambient global registry.
type Bus struct {
	rdb        *redis.Client
	instanceId string

	mu       sync.RWMutex
	handlers []Handler
	cancel   context.CancelFunc
}

// NewBus creates a new Bus. rdb may be nil for single-instance setups and
// tests, in which case dispatch stays local.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{
		rdb:        rdb,
		instanceId: uuid.New().String(),
	}
}

// Subscribe registers a handler for all subsequent events
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish dispatches the event to local handlers and, when Redis is
// configured, to every other instance. Publish never fails the calling
// mutation: a broken pub/sub link only costs remote liveness, which the
// remote directory recovers on its next change.
func (b *Bus) Publish(ctx context.Context, conversationId string, memberIds []string) {
	ev := &Event{
		ConversationId: conversationId,
		MemberIds:      memberIds,
		Origin:         b.instanceId,
	}

	b.dispatch(ev)

	if b.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, constant.RedisChanConvEvents(), data).Err(); err != nil {
		log.CtxWarn(ctx, "publish conversation event failed: conversation_id=%s, error=%v", conversationId, err)
	}
}

// dispatch delivers the event to all local handlers
func (b *Bus) dispatch(ev *Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Run starts the Redis subscription loop. No-op without a Redis client.
func (b *Bus) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	pubsub := b.rdb.Subscribe(ctx, constant.RedisChanConvEvents())

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.CtxWarn(ctx, "malformed conversation event: %v", err)
					continue
				}
				// Local handlers already saw our own events at Publish time
				if ev.Origin == b.instanceId {
					continue
				}
				b.dispatch(&ev)
			}
		}
	}()
}

// Close stops the Redis subscription loop
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}
