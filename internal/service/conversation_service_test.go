package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/pkg/errcode"
)

// fixture wires both services over one shared in-memory store with a
// controllable clock and deterministic message ids.
type fixture struct {
	store    *memStore
	notifier *fakeNotifier
	conv     *ConversationService
	msg      *MessageService
	clock    int64
	nextId   int64
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		clock:    1000,
	}
	memberStore := memMemberStore{f.store}
	msgStore := memMessageStore{f.store}

	f.conv = NewConversationService(f.store, memberStore, f.notifier)
	f.conv.now = func() int64 { return f.clock }

	f.msg = NewMessageService(f.store, memberStore, msgStore, f.notifier)
	f.msg.now = func() int64 { return f.clock }
	f.msg.newId = func() (string, error) {
		f.nextId++
		return fmt.Sprintf("%020d", f.nextId), nil
	}
	return f
}

func (f *fixture) openDirect(t *testing.T, a, b string) *entity.ConversationView {
	t.Helper()
	view, err := f.conv.OpenDirect(context.Background(), a, b)
	require.NoError(t, err)
	return view
}

func (f *fixture) createGroup(t *testing.T, owner, title string) *entity.ConversationView {
	t.Helper()
	view, err := f.conv.CreateGroup(context.Background(), owner, &CreateGroupRequest{Title: title})
	require.NoError(t, err)
	return view
}

func (f *fixture) send(t *testing.T, uid, convId, text string) *entity.MessageInfo {
	t.Helper()
	msg, err := f.msg.Send(context.Background(), uid, &SendRequest{ConversationId: convId, Text: text})
	require.NoError(t, err)
	return msg
}

func TestOpenDirect_SymmetricAndIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v1 := f.openDirect(t, "alice", "bob")
	v2 := f.openDirect(t, "bob", "alice")

	assert.Equal(t, v1.ConversationId, v2.ConversationId, "both parties land on one thread")
	assert.ElementsMatch(t, []string{"alice", "bob"}, v1.MemberIds)

	// Re-opening never forks a second conversation
	views, err := f.conv.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestOpenDirect_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.conv.OpenDirect(ctx, "", "bob")
	assert.ErrorIs(t, err, errcode.ErrAuthRequired)

	_, err = f.conv.OpenDirect(ctx, "alice", "alice")
	assert.ErrorIs(t, err, errcode.ErrSelfConversation)

	_, err = f.conv.OpenDirect(ctx, "alice", "")
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestCreateGroup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view := f.createGroup(t, "alice", "Team")
	assert.Equal(t, []string{"alice"}, view.MemberIds)
	require.Len(t, view.Members, 1)
	assert.True(t, view.Members[0].Role == 1, "creator is seeded as owner")

	_, err := f.conv.CreateGroup(ctx, "alice", &CreateGroupRequest{Title: ""})
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestGet_NotMember(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view := f.createGroup(t, "alice", "Team")

	_, err := f.conv.Get(ctx, "mallory", view.ConversationId)
	assert.ErrorIs(t, err, errcode.ErrNotMember)

	got, err := f.conv.Get(ctx, "alice", view.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, view.ConversationId, got.ConversationId)
}

func TestAddMember(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	group := f.createGroup(t, "alice", "Team")

	require.NoError(t, f.conv.AddMember(ctx, "alice", group.ConversationId, "bob"))

	err := f.conv.AddMember(ctx, "alice", group.ConversationId, "bob")
	assert.ErrorIs(t, err, errcode.ErrAlreadyMember)

	err = f.conv.AddMember(ctx, "mallory", group.ConversationId, "carol")
	assert.ErrorIs(t, err, errcode.ErrNotMember)

	err = f.conv.AddMember(ctx, "alice", "g_missing", "carol")
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)

	// The published roster includes the new member
	ev := f.notifier.last()
	require.NotNil(t, ev)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ev.MemberIds)
}

func TestAddMember_DirectImmutable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	err := f.conv.AddMember(ctx, "alice", direct.ConversationId, "carol")
	assert.ErrorIs(t, err, errcode.ErrDirectImmutable)

	err = f.conv.RemoveMember(ctx, "alice", direct.ConversationId, "bob")
	assert.ErrorIs(t, err, errcode.ErrDirectImmutable)
}

func TestRemoveMember_Permissions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	group := f.createGroup(t, "alice", "Team")
	require.NoError(t, f.conv.AddMember(ctx, "alice", group.ConversationId, "bob"))
	require.NoError(t, f.conv.AddMember(ctx, "alice", group.ConversationId, "carol"))

	// Plain member cannot remove someone else
	err := f.conv.RemoveMember(ctx, "bob", group.ConversationId, "carol")
	assert.ErrorIs(t, err, errcode.ErrForbidden)

	// Any member can leave
	require.NoError(t, f.conv.Leave(ctx, "carol", group.ConversationId))

	// The event for a removal still reaches the removed member
	ev := f.notifier.last()
	require.NotNil(t, ev)
	assert.Contains(t, ev.MemberIds, "carol")

	// Owner can remove anyone
	require.NoError(t, f.conv.RemoveMember(ctx, "alice", group.ConversationId, "bob"))

	err = f.conv.RemoveMember(ctx, "alice", group.ConversationId, "bob")
	assert.ErrorIs(t, err, errcode.ErrNotMember)
}

func TestRemoveMember_OwnerLeavePromotesEarliest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	group := f.createGroup(t, "alice", "Team")
	f.clock = 2000
	require.NoError(t, f.conv.AddMember(ctx, "alice", group.ConversationId, "bob"))
	f.clock = 3000
	require.NoError(t, f.conv.AddMember(ctx, "alice", group.ConversationId, "carol"))

	require.NoError(t, f.conv.Leave(ctx, "alice", group.ConversationId))

	view, err := f.conv.Get(ctx, "bob", group.ConversationId)
	require.NoError(t, err)
	for _, m := range view.Members {
		if m.Uid == "bob" {
			assert.Equal(t, int32(1), m.Role, "earliest-joined member inherits ownership")
		}
		if m.Uid == "carol" {
			assert.Equal(t, int32(0), m.Role)
		}
	}
}

func TestUnread_SenderExcluded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	f.clock = 100
	f.send(t, "alice", direct.ConversationId, "hello")

	aliceView, err := f.conv.Get(ctx, "alice", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(0), aliceView.UnreadCount, "sender's own counter stays put")

	bobView, err := f.conv.Get(ctx, "bob", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobView.UnreadCount)

	require.NotNil(t, bobView.LastMessage)
	assert.Equal(t, "hello", bobView.LastMessage.Text)
	assert.Equal(t, int64(100), bobView.LastMessage.CreatedAt)
}

func TestMarkRead_ResetsWhenCoveringNewest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	f.clock = 100
	f.send(t, "alice", direct.ConversationId, "first")
	f.clock = 150
	f.send(t, "alice", direct.ConversationId, "second")

	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 150))

	bobView, err := f.conv.Get(ctx, "bob", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobView.UnreadCount)
}

func TestMarkRead_StaleAckIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	f.clock = 100
	f.send(t, "alice", direct.ConversationId, "first")
	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 100))

	published := f.notifier.count()

	// Replayed and out-of-order acks change nothing and publish nothing
	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 100))
	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 50))

	assert.Equal(t, published, f.notifier.count())

	bobView, err := f.conv.Get(ctx, "bob", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobView.UnreadCount)
}

func TestMarkRead_RaceWithNewerMessageKeepsUnread(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	f.clock = 100
	f.send(t, "alice", direct.ConversationId, "first")

	// A newer message lands before bob's ack of the first one is applied
	f.clock = 150
	f.send(t, "alice", direct.ConversationId, "second")

	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 100))

	bobView, err := f.conv.Get(ctx, "bob", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bobView.UnreadCount,
		"ack of an older message must not wipe the unread count for the newer one")

	// Ack covering the newest message resolves it
	require.NoError(t, f.conv.MarkRead(ctx, "bob", direct.ConversationId, 150))
	bobView, err = f.conv.Get(ctx, "bob", direct.ConversationId)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobView.UnreadCount)
}

func TestMarkRead_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	direct := f.openDirect(t, "alice", "bob")

	err := f.conv.MarkRead(ctx, "mallory", direct.ConversationId, 100)
	assert.ErrorIs(t, err, errcode.ErrNotMember)

	err = f.conv.MarkRead(ctx, "bob", direct.ConversationId, 0)
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestList_MostRecentFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	d1 := f.openDirect(t, "alice", "bob")
	f.clock = 2000
	d2 := f.openDirect(t, "alice", "carol")

	views, err := f.conv.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, d2.ConversationId, views[0].ConversationId)

	// Activity bubbles the older conversation back to the top
	f.clock = 3000
	f.send(t, "bob", d1.ConversationId, "ping")

	views, err = f.conv.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, d1.ConversationId, views[0].ConversationId)
}
