package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoloop/chatsync/internal/entity"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// EnsureDirect idempotently creates a direct conversation and its fixed
// two-member roster. Because both parties derive the same conversation Id,
// concurrent creation attempts land on the same row and the conflict clause
// makes the loser a no-op, so at most one direct thread exists per pair.
func (r *ConversationRepo) EnsureDirect(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoNothing: true,
		}).Create(conv).Error; err != nil {
			return err
		}

		for _, m := range members {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "uid"}},
				DoNothing: true,
			}).Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateGroup creates a group conversation with its seed roster
func (r *ConversationRepo) CreateGroup(ctx context.Context, conv *entity.Conversation, members []*entity.ConversationMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get gets a conversation by Id, nil if absent
func (r *ConversationRepo) Get(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListViews returns the full per-user projection of every conversation the
// user belongs to, sorted by updated_at descending.
func (r *ConversationRepo) ListViews(ctx context.Context, uid string) ([]*entity.ConversationView, error) {
	var convIds []string
	err := r.db.WithContext(ctx).
		Model(&entity.ConversationMember{}).
		Where("uid = ?", uid).
		Pluck("conversation_id", &convIds).Error
	if err != nil {
		return nil, err
	}
	if len(convIds) == 0 {
		return []*entity.ConversationView{}, nil
	}

	var convs []*entity.Conversation
	err = r.db.WithContext(ctx).
		Where("conversation_id IN ?", convIds).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	var members []*entity.ConversationMember
	err = r.db.WithContext(ctx).
		Where("conversation_id IN ?", convIds).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	byConv := make(map[string][]*entity.ConversationMember, len(convs))
	for _, m := range members {
		byConv[m.ConversationId] = append(byConv[m.ConversationId], m)
	}

	views := make([]*entity.ConversationView, 0, len(convs))
	for _, conv := range convs {
		views = append(views, entity.BuildConversationView(conv, byConv[conv.ConversationId], uid))
	}
	return views, nil
}

// View returns the projection of a single conversation for one viewer,
// nil if the conversation does not exist.
func (r *ConversationRepo) View(ctx context.Context, conversationId, viewerUid string) (*entity.ConversationView, error) {
	conv, err := r.Get(ctx, conversationId)
	if err != nil || conv == nil {
		return nil, err
	}

	var members []*entity.ConversationMember
	err = r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	return entity.BuildConversationView(conv, members, viewerUid), nil
}
