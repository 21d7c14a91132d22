package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/pkg/constant"
)

// MemberRepo is the repository for conversation roster and unread tracking.
// unread_count is only ever mutated here, always inside a transaction that
// holds the conversation row lock, so increments and resets serialize
// against concurrent appends.
type MemberRepo struct {
	db *gorm.DB
}

// NewMemberRepo creates a new MemberRepo
func NewMemberRepo(db *gorm.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// Get gets a roster entry, nil if the uid is not a member
func (r *MemberRepo) Get(ctx context.Context, conversationId, uid string) (*entity.ConversationMember, error) {
	var member entity.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND uid = ?", conversationId, uid).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// List returns the full roster ordered by join time
func (r *MemberRepo) List(ctx context.Context, conversationId string) ([]*entity.ConversationMember, error) {
	var members []*entity.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Add inserts a roster entry. Returns false when the uid was already a
// member; the unique (conversation_id, uid) index makes this race-safe.
func (r *MemberRepo) Add(ctx context.Context, member *entity.ConversationMember, now int64) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "uid"}},
			DoNothing: true,
		}).Create(member)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		if !added {
			return nil
		}
		return tx.Model(&entity.Conversation{}).
			Where("conversation_id = ?", member.ConversationId).
			Update("updated_at", now).Error
	})
	return added, err
}

// Remove deletes a roster entry. When the leaving member is the sole owner,
// ownership transfers to the earliest-joined remaining member so a group is
// never left ownerless while populated.
func (r *MemberRepo) Remove(ctx context.Context, conversationId, uid string, now int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var leaving entity.ConversationMember
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ? AND uid = ?", conversationId, uid).
			First(&leaving).Error
		if err != nil {
			return err
		}

		if err := tx.Delete(&entity.ConversationMember{}, leaving.Id).Error; err != nil {
			return err
		}

		if leaving.Role == constant.RoleOwner {
			var owners int64
			err = tx.Model(&entity.ConversationMember{}).
				Where("conversation_id = ? AND role = ?", conversationId, constant.RoleOwner).
				Count(&owners).Error
			if err != nil {
				return err
			}
			if owners == 0 {
				var successor entity.ConversationMember
				err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("conversation_id = ?", conversationId).
					Order("joined_at ASC, id ASC").
					First(&successor).Error
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				if err == nil {
					if err := tx.Model(&entity.ConversationMember{}).
						Where("id = ?", successor.Id).
						Update("role", constant.RoleOwner).Error; err != nil {
						return err
					}
				}
			}
		}

		return tx.Model(&entity.Conversation{}).
			Where("conversation_id = ?", conversationId).
			Update("updated_at", now).Error
	})
}

// IncrementUnreadTx bumps unread_count for every member except the sender.
// Must run inside the append transaction that already holds the
// conversation row lock.
func (r *MemberRepo) IncrementUnreadTx(ctx context.Context, tx *gorm.DB, conversationId, senderUid string) error {
	return tx.WithContext(ctx).
		Model(&entity.ConversationMember{}).
		Where("conversation_id = ? AND uid <> ?", conversationId, senderUid).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

// AdvanceLastRead advances a member's last_read_at, monotonic and
// idempotent: a stale or equal timestamp is a no-op, never an error.
// unread_count is reset only when the acknowledged timestamp covers the
// live last_msg_at, compared inside the same transaction under the
// conversation row lock so that a concurrently appended message is never
// erroneously cleared.
func (r *MemberRepo) AdvanceLastRead(ctx context.Context, conversationId, uid string, ts int64) (bool, error) {
	var advanced bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv entity.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", conversationId).
			First(&conv).Error
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"last_read_at": ts,
		}
		if ts >= conv.LastMsgAt {
			updates["unread_count"] = 0
		}

		res := tx.Model(&entity.ConversationMember{}).
			Where("conversation_id = ? AND uid = ? AND last_read_at < ?", conversationId, uid, ts).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		advanced = res.RowsAffected > 0
		return nil
	})
	return advanced, err
}
