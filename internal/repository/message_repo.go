package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoloop/chatsync/internal/entity"
)

// MessageRepo is the repository for the append-only message log
type MessageRepo struct {
	db      *gorm.DB
	members *MemberRepo
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, members *MemberRepo) *MessageRepo {
	return &MessageRepo{db: db, members: members}
}

// Append stores a message and, in the same transaction, bumps the unread
// counter of every other member and refreshes the conversation's
// denormalized last-message snapshot plus updated_at. The conversation row
// lock serializes concurrent appends and read acknowledgments.
func (r *MessageRepo) Append(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv entity.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", msg.ConversationId).
			First(&conv).Error
		if err != nil {
			return err
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		if err := r.members.IncrementUnreadTx(ctx, tx, msg.ConversationId, msg.SenderId); err != nil {
			return err
		}

		return tx.Model(&entity.Conversation{}).
			Where("conversation_id = ?", msg.ConversationId).
			Updates(map[string]interface{}{
				"last_msg_id":        msg.Id,
				"last_msg_sender_id": msg.SenderId,
				"last_msg_text":      msg.Text,
				"last_msg_type":      msg.MsgType,
				"last_msg_at":        msg.CreatedAt,
				"updated_at":         msg.CreatedAt,
			}).Error
	})
}

// Get gets a message by conversation and Id, nil if absent
func (r *MessageRepo) Get(ctx context.Context, conversationId, messageId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationId, messageId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// SetText rewrites the text of a live message and stamps edited_at.
// The deleted guard keeps the update from racing a concurrent tombstone.
func (r *MessageRepo) SetText(ctx context.Context, conversationId, messageId, text string, editedAt int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND id = ? AND deleted = ?", conversationId, messageId, false).
		Updates(map[string]interface{}{
			"text":      text,
			"edited_at": editedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Tombstone logically deletes a message: the text is cleared and the
// deleted flag set, while id, sender and created_at survive so replies and
// ordering remain valid.
func (r *MessageRepo) Tombstone(ctx context.Context, conversationId, messageId string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND id = ?", conversationId, messageId).
		Updates(map[string]interface{}{
			"text":    "",
			"deleted": true,
		}).Error
}

// SetReaction applies overwrite reaction semantics under a row lock: a
// non-empty emoji replaces the uid's previous entry, an empty emoji removes
// it. One entry per uid, never accumulation.
func (r *MessageRepo) SetReaction(ctx context.Context, conversationId, messageId, uid, emoji string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg entity.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ? AND id = ?", conversationId, messageId).
			First(&msg).Error
		if err != nil {
			return err
		}

		reactions := msg.GetReactions()
		if emoji == "" {
			delete(reactions, uid)
		} else {
			reactions[uid] = emoji
		}
		msg.SetReactions(reactions)

		return tx.Model(&entity.Message{}).
			Where("conversation_id = ? AND id = ?", conversationId, messageId).
			Update("reactions", msg.Reactions).Error
	})
}

// PageBefore returns up to limit messages strictly older than the cursor,
// newest first. A nil cursor starts from the most recent message. The
// boundary is the fixed (created_at, id) pair, not an offset, so pages are
// stable under concurrent inserts.
func (r *MessageRepo) PageBefore(ctx context.Context, conversationId string, cursor *entity.PageCursor, limit int) ([]*entity.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId)

	if cursor != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.MessageId)
	}

	var messages []*entity.Message
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
