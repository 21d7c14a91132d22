package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/pkg/constant"
	"github.com/ecoloop/chatsync/pkg/errcode"
)

// ConversationService handles conversation and membership business logic
type ConversationService struct {
	convStore   ConversationStore
	memberStore MemberStore
	notifier    Notifier
	now         func() int64
}

// NewConversationService creates a new ConversationService
func NewConversationService(convStore ConversationStore, memberStore MemberStore, notifier Notifier) *ConversationService {
	return &ConversationService{
		convStore:   convStore,
		memberStore: memberStore,
		notifier:    notifier,
		now:         entity.NowUnixMilli,
	}
}

// OpenDirect opens the direct conversation between the caller and peerUid,
// creating it on first use. Both parties derive the same canonical Id, so
// two clients opening the chat simultaneously land on one thread.
func (s *ConversationService) OpenDirect(ctx context.Context, uid, peerUid string) (*entity.ConversationView, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}
	if uid == peerUid {
		return nil, errcode.ErrSelfConversation
	}

	direct, ok := entity.NewDirectConversation(uid, peerUid)
	if !ok {
		return nil, errcode.ErrInvalidParam
	}

	conv, members := direct.Record(uid, s.now())
	if err := s.convStore.EnsureDirect(ctx, conv, members); err != nil {
		log.CtxError(ctx, "ensure direct conversation failed: uid=%s, peer=%s, error=%v", uid, peerUid, err)
		return nil, errcode.ErrInternalServer
	}

	view, err := s.convStore.View(ctx, conv.ConversationId, uid)
	if err != nil || view == nil {
		log.CtxError(ctx, "load direct conversation failed: conversation_id=%s, error=%v", conv.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}

	s.notifier.Publish(ctx, view.ConversationId, view.MemberIds)
	return view, nil
}

// CreateGroupRequest represents a group creation request
type CreateGroupRequest struct {
	Title    string `json:"title"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// CreateGroup creates a group conversation with the caller as sole owner
func (s *ConversationService) CreateGroup(ctx context.Context, uid string, req *CreateGroupRequest) (*entity.ConversationView, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}

	group, ok := entity.NewGroupConversation(req.Title, req.PhotoURL, uid)
	if !ok {
		return nil, errcode.ErrInvalidParam
	}

	conv, members := group.Record(s.now())
	if err := s.convStore.CreateGroup(ctx, conv, members); err != nil {
		log.CtxError(ctx, "create group conversation failed: uid=%s, error=%v", uid, err)
		return nil, errcode.ErrInternalServer
	}

	view, err := s.convStore.View(ctx, conv.ConversationId, uid)
	if err != nil || view == nil {
		log.CtxError(ctx, "load group conversation failed: conversation_id=%s, error=%v", conv.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "group conversation created: conversation_id=%s, owner=%s", conv.ConversationId, uid)
	s.notifier.Publish(ctx, view.ConversationId, view.MemberIds)
	return view, nil
}

// List returns every conversation the user belongs to, most recently
// active first.
func (s *ConversationService) List(ctx context.Context, uid string) ([]*entity.ConversationView, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}

	views, err := s.convStore.ListViews(ctx, uid)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: uid=%s, error=%v", uid, err)
		return nil, errcode.ErrInternalServer
	}
	return views, nil
}

// Get returns one conversation for a member
func (s *ConversationService) Get(ctx context.Context, uid, conversationId string) (*entity.ConversationView, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}

	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		log.CtxError(ctx, "get member failed: conversation_id=%s, uid=%s, error=%v", conversationId, uid, err)
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	view, err := s.convStore.View(ctx, conversationId, uid)
	if err != nil {
		log.CtxError(ctx, "load conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if view == nil {
		return nil, errcode.ErrConvNotFound
	}
	return view, nil
}

// AddMember adds a user to a group roster. Direct rosters are immutable.
func (s *ConversationService) AddMember(ctx context.Context, actorUid, conversationId, uid string) error {
	if actorUid == "" {
		return errcode.ErrAuthRequired
	}
	if uid == "" {
		return errcode.ErrInvalidParam
	}

	conv, err := s.convStore.Get(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return errcode.ErrInternalServer
	}
	if conv == nil {
		return errcode.ErrConvNotFound
	}
	if conv.IsDirect() {
		return errcode.ErrDirectImmutable
	}

	actor, err := s.memberStore.Get(ctx, conversationId, actorUid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if actor == nil {
		return errcode.ErrNotMember
	}

	now := s.now()
	added, err := s.memberStore.Add(ctx, &entity.ConversationMember{
		ConversationId: conversationId,
		Uid:            uid,
		Role:           constant.RoleMember,
		JoinedAt:       now,
	}, now)
	if err != nil {
		log.CtxError(ctx, "add member failed: conversation_id=%s, uid=%s, error=%v", conversationId, uid, err)
		return errcode.ErrInternalServer
	}
	if !added {
		return errcode.ErrAlreadyMember
	}

	log.CtxInfo(ctx, "member added: conversation_id=%s, uid=%s, by=%s", conversationId, uid, actorUid)
	s.publishRoster(ctx, conversationId)
	return nil
}

// RemoveMember removes a user from a group roster. Any member may leave;
// removing someone else requires the owner role. If the sole owner leaves,
// the store promotes the earliest-joined remaining member.
func (s *ConversationService) RemoveMember(ctx context.Context, actorUid, conversationId, uid string) error {
	if actorUid == "" {
		return errcode.ErrAuthRequired
	}

	conv, err := s.convStore.Get(ctx, conversationId)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if conv == nil {
		return errcode.ErrConvNotFound
	}
	if conv.IsDirect() {
		return errcode.ErrDirectImmutable
	}

	actor, err := s.memberStore.Get(ctx, conversationId, actorUid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if actor == nil {
		return errcode.ErrNotMember
	}
	if actorUid != uid && !actor.IsOwner() {
		return errcode.ErrForbidden
	}

	target, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if target == nil {
		return errcode.ErrNotMember
	}

	// Snapshot the roster before removal so the leaving member's own
	// directory still gets the update.
	members, err := s.memberStore.List(ctx, conversationId)
	if err != nil {
		return errcode.ErrInternalServer
	}

	if err := s.memberStore.Remove(ctx, conversationId, uid, s.now()); err != nil {
		log.CtxError(ctx, "remove member failed: conversation_id=%s, uid=%s, error=%v", conversationId, uid, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "member removed: conversation_id=%s, uid=%s, by=%s", conversationId, uid, actorUid)
	s.notifier.Publish(ctx, conversationId, memberIds(members))
	return nil
}

// Leave removes the caller from a group roster
func (s *ConversationService) Leave(ctx context.Context, uid, conversationId string) error {
	return s.RemoveMember(ctx, uid, conversationId, uid)
}

// MarkRead acknowledges that the caller has read the conversation up to
// the given message timestamp. Stale or repeated acknowledgments are a
// silent no-op, so retries and replays are safe.
func (s *ConversationService) MarkRead(ctx context.Context, uid, conversationId string, ts int64) error {
	if uid == "" {
		return errcode.ErrAuthRequired
	}
	if ts <= 0 {
		return errcode.ErrInvalidParam
	}

	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if member == nil {
		return errcode.ErrNotMember
	}

	advanced, err := s.memberStore.AdvanceLastRead(ctx, conversationId, uid, ts)
	if err != nil {
		log.CtxError(ctx, "advance last read failed: conversation_id=%s, uid=%s, error=%v", conversationId, uid, err)
		return errcode.ErrInternalServer
	}

	if advanced {
		s.publishRoster(ctx, conversationId)
	}
	return nil
}

// publishRoster emits a change event carrying the current member set
func (s *ConversationService) publishRoster(ctx context.Context, conversationId string) {
	members, err := s.memberStore.List(ctx, conversationId)
	if err != nil {
		log.CtxWarn(ctx, "list members for publish failed: conversation_id=%s, error=%v", conversationId, err)
		return
	}
	s.notifier.Publish(ctx, conversationId, memberIds(members))
}
