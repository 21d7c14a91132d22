package entity

import "encoding/json"

// Message represents a message. Messages are never physically removed:
// deletion clears the text and sets the tombstone flag, keeping id, sender
// and created_at so replies and ordering stay valid.
//
// Messages within a conversation are totally ordered by (created_at, id)
// ascending; the id is the tie-break when the millisecond clock collides.
type Message struct {
	Id             string  `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string  `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_created"`
	SenderId       string  `json:"sender_id" gorm:"column:sender_id"`
	MsgType        int32   `json:"msg_type" gorm:"column:msg_type"`
	Text           string  `json:"text" gorm:"column:text"`
	ReplyToId      string  `json:"reply_to_id" gorm:"column:reply_to_id"`
	Reactions      *string `json:"-" gorm:"column:reactions;type:json"`
	Deleted        bool    `json:"deleted" gorm:"column:deleted"`
	CreatedAt      int64   `json:"created_at" gorm:"column:created_at;index:idx_conv_created"`
	EditedAt       *int64  `json:"edited_at" gorm:"column:edited_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// GetReactions decodes the reactions column into uid -> emoji.
// A missing or malformed column reads as an empty map.
func (m *Message) GetReactions() map[string]string {
	reactions := make(map[string]string)
	if m.Reactions != nil && *m.Reactions != "" {
		_ = json.Unmarshal([]byte(*m.Reactions), &reactions)
	}
	return reactions
}

// SetReactions encodes uid -> emoji into the reactions column
func (m *Message) SetReactions(reactions map[string]string) {
	if len(reactions) == 0 {
		m.Reactions = nil
		return
	}
	data, err := json.Marshal(reactions)
	if err != nil {
		return
	}
	s := string(data)
	m.Reactions = &s
}

// OrderedBefore reports whether m precedes other in the conversation's
// total order.
func (m *Message) OrderedBefore(other *Message) bool {
	if m.CreatedAt != other.CreatedAt {
		return m.CreatedAt < other.CreatedAt
	}
	return m.Id < other.Id
}

// MessageInfo represents a message in API responses
type MessageInfo struct {
	Id             string            `json:"id"`
	ConversationId string            `json:"conversation_id"`
	SenderId       string            `json:"sender_id"`
	MsgType        int32             `json:"msg_type"`
	Text           string            `json:"text,omitempty"`
	ReplyToId      string            `json:"reply_to_id,omitempty"`
	Reactions      map[string]string `json:"reactions,omitempty"`
	Deleted        bool              `json:"deleted"`
	CreatedAt      int64             `json:"created_at"`
	EditedAt       *int64            `json:"edited_at,omitempty"`
}

// ToMessageInfo converts a Message to its API shape
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		MsgType:        m.MsgType,
		Text:           m.Text,
		ReplyToId:      m.ReplyToId,
		Reactions:      m.GetReactions(),
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
	}
}
