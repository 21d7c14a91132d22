package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/pkg/constant"
	"github.com/ecoloop/chatsync/pkg/errcode"
	"github.com/ecoloop/chatsync/pkg/idgen"
)

// Pusher delivers realtime payloads to connected users
type Pusher interface {
	AsyncPushMessage(ctx context.Context, uids []string, msg *entity.MessageInfo)
}

// MessageService handles message business logic
type MessageService struct {
	convStore   ConversationStore
	memberStore MemberStore
	msgStore    MessageStore
	notifier    Notifier
	pusher      Pusher
	now         func() int64
	newId       func() (string, error)
}

// NewMessageService creates a new MessageService
func NewMessageService(convStore ConversationStore, memberStore MemberStore, msgStore MessageStore, notifier Notifier) *MessageService {
	return &MessageService{
		convStore:   convStore,
		memberStore: memberStore,
		msgStore:    msgStore,
		notifier:    notifier,
		now:         entity.NowUnixMilli,
		newId:       idgen.NextID,
	}
}

// SetPusher attaches the realtime push gateway
func (s *MessageService) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// SendRequest represents a message send request
type SendRequest struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
	MsgType        int32  `json:"msg_type,omitempty"`
	ReplyToId      string `json:"reply_to_id,omitempty"`
}

// Send appends a message to the conversation log. The append, the peers'
// unread bumps and the conversation's lastMessage snapshot commit together.
func (s *MessageService) Send(ctx context.Context, uid string, req *SendRequest) (*entity.MessageInfo, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}
	if req.Text == "" {
		return nil, errcode.ErrInvalidParam
	}

	conv, err := s.convStore.Get(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", req.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	member, err := s.memberStore.Get(ctx, req.ConversationId, uid)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	msgId, err := s.newId()
	if err != nil {
		log.CtxError(ctx, "generate message id failed: error=%v", err)
		return nil, errcode.ErrSendFailed
	}

	msgType := req.MsgType
	if msgType == 0 {
		msgType = constant.MsgTypeText
	}

	msg := &entity.Message{
		Id:             msgId,
		ConversationId: req.ConversationId,
		SenderId:       uid,
		MsgType:        msgType,
		Text:           req.Text,
		ReplyToId:      req.ReplyToId,
		CreatedAt:      s.now(),
	}

	if err := s.msgStore.Append(ctx, msg); err != nil {
		log.CtxError(ctx, "append message failed: conversation_id=%s, uid=%s, error=%v", req.ConversationId, uid, err)
		return nil, errcode.ErrSendFailed
	}

	members, err := s.memberStore.List(ctx, req.ConversationId)
	if err != nil {
		log.CtxWarn(ctx, "list members after send failed: conversation_id=%s, error=%v", req.ConversationId, err)
	} else {
		uids := memberIds(members)
		s.notifier.Publish(ctx, req.ConversationId, uids)
		if s.pusher != nil {
			s.pusher.AsyncPushMessage(ctx, uids, msg.ToMessageInfo())
		}
	}

	return msg.ToMessageInfo(), nil
}

// Edit replaces the text of a message the caller sent. Tombstoned messages
// cannot be edited.
func (s *MessageService) Edit(ctx context.Context, uid, conversationId, messageId, text string) (*entity.MessageInfo, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}
	if text == "" {
		return nil, errcode.ErrInvalidParam
	}

	msg, err := s.loadOwnMessage(ctx, uid, conversationId, messageId)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, errcode.ErrMessageDeleted
	}

	editedAt := s.now()
	ok, err := s.msgStore.SetText(ctx, conversationId, messageId, text, editedAt)
	if err != nil {
		log.CtxError(ctx, "edit message failed: message_id=%s, error=%v", messageId, err)
		return nil, errcode.ErrInternalServer
	}
	if !ok {
		// Deleted between the read and the guarded update.
		return nil, errcode.ErrMessageDeleted
	}

	msg.Text = text
	msg.EditedAt = &editedAt
	return msg.ToMessageInfo(), nil
}

// Delete tombstones a message: the text is cleared but the entry keeps its
// place in the log. The sender or a group owner may delete; deleting a
// message that is already gone succeeds without effect.
func (s *MessageService) Delete(ctx context.Context, uid, conversationId, messageId string) error {
	if uid == "" {
		return errcode.ErrAuthRequired
	}

	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if member == nil {
		return errcode.ErrNotMember
	}

	msg, err := s.msgStore.Get(ctx, conversationId, messageId)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if msg == nil {
		return errcode.ErrMessageNotFound
	}
	if msg.SenderId != uid && !member.IsOwner() {
		return errcode.ErrForbidden
	}
	if msg.Deleted {
		return nil
	}

	if err := s.msgStore.Tombstone(ctx, conversationId, messageId); err != nil {
		log.CtxError(ctx, "delete message failed: message_id=%s, error=%v", messageId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "message deleted: conversation_id=%s, message_id=%s, by=%s", conversationId, messageId, uid)
	return nil
}

// React sets the caller's reaction on a message, one emoji per user. A new
// emoji replaces the previous one; an empty emoji removes the reaction.
// Tombstoned messages still accept reactions.
func (s *MessageService) React(ctx context.Context, uid, conversationId, messageId, emoji string) error {
	if uid == "" {
		return errcode.ErrAuthRequired
	}

	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if member == nil {
		return errcode.ErrNotMember
	}

	msg, err := s.msgStore.Get(ctx, conversationId, messageId)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if msg == nil {
		return errcode.ErrMessageNotFound
	}

	if err := s.msgStore.SetReaction(ctx, conversationId, messageId, uid, emoji); err != nil {
		log.CtxError(ctx, "set reaction failed: message_id=%s, uid=%s, error=%v", messageId, uid, err)
		return errcode.ErrInternalServer
	}
	return nil
}

// History returns one page of the conversation log, newest first. An empty
// cursor starts from the latest message; the returned NextCursor is absent
// once the log is exhausted.
func (s *MessageService) History(ctx context.Context, uid, conversationId, cursor string, pageSize int) (*entity.MessagePage, error) {
	if uid == "" {
		return nil, errcode.ErrAuthRequired
	}

	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	var before *entity.PageCursor
	if cursor != "" {
		pc, derr := entity.DecodePageCursor(cursor)
		if derr != nil {
			return nil, errcode.ErrBadCursor
		}
		before = &pc
	}

	limit := pageSize
	if limit <= 0 {
		limit = constant.DefaultPageSize
	}
	if limit > constant.MaxPageSize {
		limit = constant.MaxPageSize
	}

	// Fetch one extra row to know whether another page exists.
	msgs, err := s.msgStore.PageBefore(ctx, conversationId, before, limit+1)
	if err != nil {
		log.CtxError(ctx, "page messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}

	page := &entity.MessagePage{}
	if len(msgs) > limit {
		msgs = msgs[:limit]
		oldest := msgs[len(msgs)-1]
		page.NextCursor = entity.PageCursor{CreatedAt: oldest.CreatedAt, MessageId: oldest.Id}.Encode()
	}

	page.Messages = make([]*entity.MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		page.Messages = append(page.Messages, m.ToMessageInfo())
	}
	return page, nil
}

// loadOwnMessage fetches a message and verifies the caller is a member of
// its conversation and the original sender.
func (s *MessageService) loadOwnMessage(ctx context.Context, uid, conversationId, messageId string) (*entity.Message, error) {
	member, err := s.memberStore.Get(ctx, conversationId, uid)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	msg, err := s.msgStore.Get(ctx, conversationId, messageId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if msg == nil {
		return nil, errcode.ErrMessageNotFound
	}
	if msg.SenderId != uid {
		return nil, errcode.ErrForbidden
	}
	return msg, nil
}
