package service

import (
	"context"
	"sort"
	"sync"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/pkg/constant"
)

// memStore is an in-memory implementation of the store contracts used by
// the service tests. It honors the same atomicity rules the MySQL
// repositories do: Append bumps unread counters and the last-message
// snapshot in one step, AdvanceLastRead is monotonic and decides the
// unread reset against the live last-message timestamp.
type memStore struct {
	mu      sync.Mutex
	convs   map[string]*entity.Conversation
	members map[string]map[string]*entity.ConversationMember
	msgs    map[string][]*entity.Message
}

func newMemStore() *memStore {
	return &memStore{
		convs:   make(map[string]*entity.Conversation),
		members: make(map[string]map[string]*entity.ConversationMember),
		msgs:    make(map[string][]*entity.Message),
	}
}

func (s *memStore) EnsureDirect(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.convs[conv.ConversationId]; exists {
		return nil
	}
	s.put(conv, members)
	return nil
}

func (s *memStore) CreateGroup(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(conv, members)
	return nil
}

func (s *memStore) put(conv *entity.Conversation, members []*entity.ConversationMember) {
	s.convs[conv.ConversationId] = conv
	s.members[conv.ConversationId] = make(map[string]*entity.ConversationMember)
	for _, m := range members {
		s.members[conv.ConversationId][m.Uid] = m
	}
}

func (s *memStore) Get(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[conversationId], nil
}

func (s *memStore) View(ctx context.Context, conversationId, viewerUid string) (*entity.ConversationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationId]
	if !ok {
		return nil, nil
	}
	return entity.BuildConversationView(conv, s.sortedMembers(conversationId), viewerUid), nil
}

func (s *memStore) ListViews(ctx context.Context, uid string) ([]*entity.ConversationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convs []*entity.Conversation
	for id, roster := range s.members {
		if _, ok := roster[uid]; ok {
			convs = append(convs, s.convs[id])
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt > convs[j].UpdatedAt
	})

	views := make([]*entity.ConversationView, 0, len(convs))
	for _, conv := range convs {
		views = append(views, entity.BuildConversationView(conv, s.sortedMembers(conv.ConversationId), uid))
	}
	return views, nil
}

func (s *memStore) sortedMembers(conversationId string) []*entity.ConversationMember {
	roster := s.members[conversationId]
	out := make([]*entity.ConversationMember, 0, len(roster))
	for _, m := range roster {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt != out[j].JoinedAt {
			return out[i].JoinedAt < out[j].JoinedAt
		}
		return out[i].Uid < out[j].Uid
	})
	return out
}

// MemberStore

func (s *memStore) GetMember(ctx context.Context, conversationId, uid string) (*entity.ConversationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.members[conversationId]
	if !ok {
		return nil, nil
	}
	return roster[uid], nil
}

func (s *memStore) List(ctx context.Context, conversationId string) ([]*entity.ConversationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedMembers(conversationId), nil
}

func (s *memStore) Add(ctx context.Context, member *entity.ConversationMember, now int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.members[member.ConversationId]
	if !ok {
		return false, nil
	}
	if _, exists := roster[member.Uid]; exists {
		return false, nil
	}
	roster[member.Uid] = member
	s.convs[member.ConversationId].UpdatedAt = now
	return true, nil
}

func (s *memStore) Remove(ctx context.Context, conversationId, uid string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.members[conversationId]
	if !ok {
		return nil
	}
	leaving, exists := roster[uid]
	if !exists {
		return nil
	}
	delete(roster, uid)

	if leaving.Role == constant.RoleOwner {
		hasOwner := false
		for _, m := range roster {
			if m.Role == constant.RoleOwner {
				hasOwner = true
				break
			}
		}
		if !hasOwner {
			var earliest *entity.ConversationMember
			for _, m := range roster {
				if earliest == nil || m.JoinedAt < earliest.JoinedAt ||
					(m.JoinedAt == earliest.JoinedAt && m.Uid < earliest.Uid) {
					earliest = m
				}
			}
			if earliest != nil {
				earliest.Role = constant.RoleOwner
			}
		}
	}

	s.convs[conversationId].UpdatedAt = now
	return nil
}

func (s *memStore) AdvanceLastRead(ctx context.Context, conversationId, uid string, ts int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.members[conversationId]
	if !ok {
		return false, nil
	}
	m, exists := roster[uid]
	if !exists {
		return false, nil
	}
	if ts <= m.LastReadAt {
		return false, nil
	}
	m.LastReadAt = ts
	// Reset only when the acknowledgment covers the live newest message
	if ts >= s.convs[conversationId].LastMsgAt {
		m.UnreadCount = 0
	}
	return true, nil
}

// MessageStore

func (s *memStore) Append(ctx context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs[msg.ConversationId] = append(s.msgs[msg.ConversationId], msg)

	for uid, m := range s.members[msg.ConversationId] {
		if uid != msg.SenderId {
			m.UnreadCount++
		}
	}

	conv := s.convs[msg.ConversationId]
	conv.LastMsgId = msg.Id
	conv.LastMsgSenderId = msg.SenderId
	conv.LastMsgText = msg.Text
	conv.LastMsgType = msg.MsgType
	conv.LastMsgAt = msg.CreatedAt
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *memStore) GetMessage(ctx context.Context, conversationId, messageId string) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findMessage(conversationId, messageId), nil
}

func (s *memStore) findMessage(conversationId, messageId string) *entity.Message {
	for _, m := range s.msgs[conversationId] {
		if m.Id == messageId {
			return m
		}
	}
	return nil
}

func (s *memStore) SetText(ctx context.Context, conversationId, messageId, text string, editedAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findMessage(conversationId, messageId)
	if msg == nil || msg.Deleted {
		return false, nil
	}
	msg.Text = text
	msg.EditedAt = &editedAt
	return true, nil
}

func (s *memStore) Tombstone(ctx context.Context, conversationId, messageId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findMessage(conversationId, messageId)
	if msg == nil {
		return nil
	}
	msg.Text = ""
	msg.Deleted = true
	return nil
}

func (s *memStore) SetReaction(ctx context.Context, conversationId, messageId, uid, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findMessage(conversationId, messageId)
	if msg == nil {
		return nil
	}
	reactions := msg.GetReactions()
	if emoji == "" {
		delete(reactions, uid)
	} else {
		reactions[uid] = emoji
	}
	msg.SetReactions(reactions)
	return nil
}

func (s *memStore) PageBefore(ctx context.Context, conversationId string, cursor *entity.PageCursor, limit int) ([]*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.Message
	for _, m := range s.msgs[conversationId] {
		if cursor != nil {
			if m.CreatedAt > cursor.CreatedAt {
				continue
			}
			if m.CreatedAt == cursor.CreatedAt && m.Id >= cursor.MessageId {
				continue
			}
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].OrderedBefore(out[i])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Adapters present the single fake as the three store contracts. The Get
// method name is taken by the conversation lookup, so the member and
// message views shadow it.

type memMemberStore struct{ *memStore }

func (s memMemberStore) Get(ctx context.Context, conversationId, uid string) (*entity.ConversationMember, error) {
	return s.GetMember(ctx, conversationId, uid)
}

type memMessageStore struct{ *memStore }

func (s memMessageStore) Get(ctx context.Context, conversationId, messageId string) (*entity.Message, error) {
	return s.GetMessage(ctx, conversationId, messageId)
}

// fakeNotifier records published change events
type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	ConversationId string
	MemberIds      []string
}

func (n *fakeNotifier) Publish(ctx context.Context, conversationId string, memberIds []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{ConversationId: conversationId, MemberIds: memberIds})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func (n *fakeNotifier) last() *publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return nil
	}
	ev := n.events[len(n.events)-1]
	return &ev
}
