package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/internal/events"
)

// fakeLister serves canned directory projections and can be told to fail
type fakeLister struct {
	mu    sync.Mutex
	views map[string][]*entity.ConversationView
	fail  error
	calls int
}

func (f *fakeLister) ListViews(ctx context.Context, uid string) ([]*entity.ConversationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.views[uid], nil
}

func (f *fakeLister) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeLister) setViews(uid string, views []*entity.ConversationView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.views == nil {
		f.views = make(map[string][]*entity.ConversationView)
	}
	f.views[uid] = views
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestHub(lister Lister) *Hub {
	return NewHub(lister, 10*time.Millisecond, 50*time.Millisecond)
}

func recvSnapshot(t *testing.T, ch <-chan []*entity.ConversationView) []*entity.ConversationView {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestHub_InitialSnapshotEvenWhenEmpty(t *testing.T) {
	lister := &fakeLister{}
	hub := newTestHub(lister)
	defer hub.Close()

	ch := make(chan []*entity.ConversationView, 4)
	sub := hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})
	defer sub.Cancel()

	snap := recvSnapshot(t, ch)
	assert.NotNil(t, snap, "empty directory still yields a snapshot")
	assert.Empty(t, snap)
}

func TestHub_NotifyDeliversFullSnapshot(t *testing.T) {
	lister := &fakeLister{}
	lister.setViews("alice", []*entity.ConversationView{{ConversationId: "d_alice:bob"}})

	hub := newTestHub(lister)
	defer hub.Close()

	ch := make(chan []*entity.ConversationView, 4)
	sub := hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})
	defer sub.Cancel()

	snap := recvSnapshot(t, ch)
	require.Len(t, snap, 1)

	lister.setViews("alice", []*entity.ConversationView{
		{ConversationId: "g_team"},
		{ConversationId: "d_alice:bob"},
	})
	hub.Notify("alice")

	snap = recvSnapshot(t, ch)
	require.Len(t, snap, 2, "snapshot is the full directory, not a delta")
	assert.Equal(t, "g_team", snap[0].ConversationId)
}

func TestHub_HandleEventNotifiesMembers(t *testing.T) {
	lister := &fakeLister{}
	lister.setViews("bob", []*entity.ConversationView{{ConversationId: "d_alice:bob"}})

	hub := newTestHub(lister)
	defer hub.Close()

	ch := make(chan []*entity.ConversationView, 4)
	sub := hub.Subscribe(context.Background(), "bob", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})
	defer sub.Cancel()

	recvSnapshot(t, ch) // initial

	hub.HandleEvent(&events.Event{ConversationId: "d_alice:bob", MemberIds: []string{"alice", "bob"}})
	snap := recvSnapshot(t, ch)
	require.Len(t, snap, 1)
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	lister := &fakeLister{}
	hub := newTestHub(lister)
	defer hub.Close()

	sub := hub.Subscribe(context.Background(), "alice", func([]*entity.ConversationView) {})

	sub.Cancel()
	assert.NotPanics(t, func() { sub.Cancel() })
	assert.NotPanics(t, func() { sub.Cancel() })
}

func TestSubscription_NoEmissionAfterCancel(t *testing.T) {
	lister := &fakeLister{}
	hub := newTestHub(lister)
	defer hub.Close()

	var mu sync.Mutex
	delivered := 0

	ch := make(chan []*entity.ConversationView, 4)
	sub := hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		mu.Lock()
		delivered++
		mu.Unlock()
		ch <- snapshot
	})

	recvSnapshot(t, ch)
	sub.Cancel()

	mu.Lock()
	before := delivered
	mu.Unlock()

	// Changes after cancellation must not reach the observer
	hub.Notify("alice")
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, before, delivered)
	mu.Unlock()
}

func TestSubscription_RetryKeepsLastSnapshot(t *testing.T) {
	lister := &fakeLister{}
	lister.setViews("alice", []*entity.ConversationView{{ConversationId: "d_alice:bob"}})

	hub := newTestHub(lister)
	defer hub.Close()

	ch := make(chan []*entity.ConversationView, 8)
	sub := hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})
	defer sub.Cancel()

	first := recvSnapshot(t, ch)
	require.Len(t, first, 1)

	// Projection starts failing; the subscriber keeps its last good
	// snapshot and the hub retries in the background.
	lister.setFail(errors.New("store unavailable"))
	callsBefore := lister.callCount()
	hub.Notify("alice")

	require.Eventually(t, func() bool {
		return lister.callCount() > callsBefore+1
	}, 2*time.Second, 5*time.Millisecond, "expected backoff retries while failing")

	assert.Len(t, sub.LastSnapshot(), 1, "last good snapshot is retained during the outage")

	// Recovery: the pending refresh eventually lands
	lister.setViews("alice", []*entity.ConversationView{
		{ConversationId: "g_team"},
		{ConversationId: "d_alice:bob"},
	})
	lister.setFail(nil)

	snap := recvSnapshot(t, ch)
	require.Len(t, snap, 2)
}

func TestHub_CloseCancelsAll(t *testing.T) {
	lister := &fakeLister{}
	hub := newTestHub(lister)

	ch := make(chan []*entity.ConversationView, 4)
	hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})
	recvSnapshot(t, ch)

	hub.Close()

	hub.Notify("alice")
	select {
	case <-ch:
		t.Fatal("observer invoked after hub close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	lister := &fakeLister{}
	hub := newTestHub(lister)
	hub.Close()

	ch := make(chan []*entity.ConversationView, 1)
	sub := hub.Subscribe(context.Background(), "alice", func(snapshot []*entity.ConversationView) {
		ch <- snapshot
	})

	snap := recvSnapshot(t, ch)
	assert.Empty(t, snap, "closed hub still delivers the empty snapshot once")
	assert.NotPanics(t, func() { sub.Cancel() })
}
