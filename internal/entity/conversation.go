package entity

import (
	"github.com/ecoloop/chatsync/pkg/constant"
)

// Conversation represents a conversation document. The last_msg_* columns
// are a denormalized snapshot of the most recently appended message; they
// are set at append time and never retroactively corrected by later edits
// or deletes.
type Conversation struct {
	ConversationId  string `json:"conversation_id" gorm:"column:conversation_id;primaryKey"`
	ConvType        int32  `json:"conv_type" gorm:"column:conv_type"`
	Title           string `json:"title" gorm:"column:title"`
	PhotoURL        string `json:"photo_url" gorm:"column:photo_url"`
	CreatedBy       string `json:"created_by" gorm:"column:created_by"`
	LastMsgId       string `json:"last_msg_id" gorm:"column:last_msg_id"`
	LastMsgSenderId string `json:"last_msg_sender_id" gorm:"column:last_msg_sender_id"`
	LastMsgText     string `json:"last_msg_text" gorm:"column:last_msg_text"`
	LastMsgType     int32  `json:"last_msg_type" gorm:"column:last_msg_type"`
	LastMsgAt       int64  `json:"last_msg_at" gorm:"column:last_msg_at"`
	CreatedAt       int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// IsDirect checks if the conversation is a direct chat
func (c *Conversation) IsDirect() bool {
	return c.ConvType == constant.ConvTypeDirect
}

// ConversationMember represents one member of a conversation's roster.
// last_read_at is monotonic non-decreasing; unread_count is non-negative
// and only mutated by the member repository's unread-tracking methods.
type ConversationMember struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_uid"`
	Uid            string `json:"uid" gorm:"column:uid;uniqueIndex:uk_conv_uid"`
	Role           int32  `json:"role" gorm:"column:role"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at"`
	LastReadAt     int64  `json:"last_read_at" gorm:"column:last_read_at"`
	UnreadCount    int64  `json:"unread_count" gorm:"column:unread_count"`
}

// TableName returns the table name for ConversationMember
func (ConversationMember) TableName() string {
	return "conversation_members"
}

// IsOwner checks if the member holds the owner role
func (m *ConversationMember) IsOwner() bool {
	return m.Role == constant.RoleOwner
}

// DirectConversation is the only way to build a direct conversation, so a
// "direct" chat with anything other than two distinct members cannot be
// expressed.
type DirectConversation struct {
	MemberA string
	MemberB string
}

// NewDirectConversation validates and builds the direct-chat variant
func NewDirectConversation(uidA, uidB string) (*DirectConversation, bool) {
	if uidA == "" || uidB == "" || uidA == uidB {
		return nil, false
	}
	return &DirectConversation{MemberA: uidA, MemberB: uidB}, true
}

// Id returns the canonical conversation Id for the pair
func (d *DirectConversation) Id() string {
	return DirectConversationId(d.MemberA, d.MemberB)
}

// Record renders the variant as a persistable Conversation plus its fixed
// two-member roster.
func (d *DirectConversation) Record(createdBy string, now int64) (*Conversation, []*ConversationMember) {
	conv := &Conversation{
		ConversationId: d.Id(),
		ConvType:       constant.ConvTypeDirect,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	members := []*ConversationMember{
		{ConversationId: conv.ConversationId, Uid: d.MemberA, Role: constant.RoleMember, JoinedAt: now},
		{ConversationId: conv.ConversationId, Uid: d.MemberB, Role: constant.RoleMember, JoinedAt: now},
	}
	return conv, members
}

// GroupConversation is the group-chat variant: a title, an optional photo
// and a creator who is seeded as the sole owner.
type GroupConversation struct {
	Title    string
	PhotoURL string
	OwnerUid string
}

// NewGroupConversation validates and builds the group-chat variant
func NewGroupConversation(title, photoURL, ownerUid string) (*GroupConversation, bool) {
	if ownerUid == "" || title == "" {
		return nil, false
	}
	return &GroupConversation{Title: title, PhotoURL: photoURL, OwnerUid: ownerUid}, true
}

// Record renders the variant as a persistable Conversation with the creator
// as owner.
func (g *GroupConversation) Record(now int64) (*Conversation, []*ConversationMember) {
	conv := &Conversation{
		ConversationId: NewGroupConversationId(),
		ConvType:       constant.ConvTypeGroup,
		Title:          g.Title,
		PhotoURL:       g.PhotoURL,
		CreatedBy:      g.OwnerUid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	members := []*ConversationMember{
		{ConversationId: conv.ConversationId, Uid: g.OwnerUid, Role: constant.RoleOwner, JoinedAt: now},
	}
	return conv, members
}

// LastMessageInfo is the denormalized last-message snapshot in API responses
type LastMessageInfo struct {
	MessageId string `json:"message_id,omitempty"`
	SenderId  string `json:"sender_id,omitempty"`
	Text      string `json:"text,omitempty"`
	MsgType   int32  `json:"msg_type,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// MemberInfo represents a roster entry for API responses
type MemberInfo struct {
	Uid         string `json:"uid"`
	Role        int32  `json:"role"`
	JoinedAt    int64  `json:"joined_at"`
	LastReadAt  int64  `json:"last_read_at,omitempty"`
	UnreadCount int64  `json:"unread_count"`
}

// ConversationView is the per-user projection of a conversation used by the
// directory and the HTTP API. MemberIds is derived from Members and never
// persisted separately.
type ConversationView struct {
	ConversationId string           `json:"conversation_id"`
	ConvType       int32            `json:"conv_type"`
	Title          string           `json:"title,omitempty"`
	PhotoURL       string           `json:"photo_url,omitempty"`
	CreatedBy      string           `json:"created_by"`
	Members        []*MemberInfo    `json:"members"`
	MemberIds      []string         `json:"member_ids"`
	LastMessage    *LastMessageInfo `json:"last_message,omitempty"`
	UnreadCount    int64            `json:"unread_count"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

// BuildConversationView assembles the projection for one viewer
func BuildConversationView(conv *Conversation, members []*ConversationMember, viewerUid string) *ConversationView {
	view := &ConversationView{
		ConversationId: conv.ConversationId,
		ConvType:       conv.ConvType,
		Title:          conv.Title,
		PhotoURL:       conv.PhotoURL,
		CreatedBy:      conv.CreatedBy,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}

	view.Members = make([]*MemberInfo, 0, len(members))
	view.MemberIds = make([]string, 0, len(members))
	for _, m := range members {
		view.Members = append(view.Members, &MemberInfo{
			Uid:         m.Uid,
			Role:        m.Role,
			JoinedAt:    m.JoinedAt,
			LastReadAt:  m.LastReadAt,
			UnreadCount: m.UnreadCount,
		})
		view.MemberIds = append(view.MemberIds, m.Uid)
		if m.Uid == viewerUid {
			view.UnreadCount = m.UnreadCount
		}
	}

	if conv.LastMsgId != "" {
		view.LastMessage = &LastMessageInfo{
			MessageId: conv.LastMsgId,
			SenderId:  conv.LastMsgSenderId,
			Text:      conv.LastMsgText,
			MsgType:   conv.LastMsgType,
			CreatedAt: conv.LastMsgAt,
		}
	}

	return view
}
