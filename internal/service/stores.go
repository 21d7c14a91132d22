package service

import (
	"context"

	"github.com/ecoloop/chatsync/internal/entity"
)

// The services depend on the backing store only through these contracts
// (constructor-injected, never reached through ambient scope). The MySQL
// repositories implement them; tests substitute in-memory fakes.
//
// Implementations own all shared mutable state (unread counters, the
// last-message snapshot) and must mutate it through atomic
// read-modify-write, never a blind overwrite from a stale copy.

// ConversationStore persists conversations and their projections
type ConversationStore interface {
	// EnsureDirect creates a direct conversation idempotently: repeated
	// calls with the same canonical Id resolve to the same conversation.
	EnsureDirect(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error
	CreateGroup(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error
	Get(ctx context.Context, conversationId string) (*entity.Conversation, error)
	View(ctx context.Context, conversationId, viewerUid string) (*entity.ConversationView, error)
	ListViews(ctx context.Context, uid string) ([]*entity.ConversationView, error)
}

// MemberStore persists rosters and owns unread tracking
type MemberStore interface {
	Get(ctx context.Context, conversationId, uid string) (*entity.ConversationMember, error)
	List(ctx context.Context, conversationId string) ([]*entity.ConversationMember, error)
	// Add reports false when the uid was already on the roster
	Add(ctx context.Context, member *entity.ConversationMember, now int64) (bool, error)
	// Remove transfers ownership to the earliest-joined remaining member
	// when the sole owner leaves
	Remove(ctx context.Context, conversationId, uid string, now int64) error
	// AdvanceLastRead is monotonic and idempotent: stale timestamps are a
	// no-op. The unread reset is decided against the live last-message
	// timestamp inside a single atomic step.
	AdvanceLastRead(ctx context.Context, conversationId, uid string, ts int64) (bool, error)
}

// MessageStore persists the append-only, tombstone-capable message log
type MessageStore interface {
	// Append atomically stores the message, increments the other members'
	// unread counters and refreshes the conversation's last-message
	// snapshot and updated_at.
	Append(ctx context.Context, msg *entity.Message) error
	Get(ctx context.Context, conversationId, messageId string) (*entity.Message, error)
	// SetText reports false when the message is gone or tombstoned
	SetText(ctx context.Context, conversationId, messageId, text string, editedAt int64) (bool, error)
	Tombstone(ctx context.Context, conversationId, messageId string) error
	// SetReaction overwrites the uid's entry; an empty emoji removes it
	SetReaction(ctx context.Context, conversationId, messageId, uid, emoji string) error
	// PageBefore returns messages strictly older than the cursor, newest
	// first; nil cursor starts at the most recent message
	PageBefore(ctx context.Context, conversationId string, cursor *entity.PageCursor, limit int) ([]*entity.Message, error)
}

// Notifier publishes conversation change events for directory re-projection
type Notifier interface {
	Publish(ctx context.Context, conversationId string, memberIds []string)
}

// memberIds derives the uid set of a roster
func memberIds(members []*entity.ConversationMember) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Uid)
	}
	return ids
}
