package store

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/kart-io/docchat/internal/model"
)

type conversations struct {
	db *gorm.DB
}

func newConversations(db *gorm.DB) *conversations {
	return &conversations{db}
}

// Create 创建会话记录。
func (c *conversations) Create(ctx context.Context, conv *model.Conversation) error {
	if conv.ID == "" {
		conv.ID = ulid.Make().String()
	}
	return c.db.WithContext(ctx).Create(conv).Error
}

// Get 按 ID 查询会话。
func (c *conversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// List 按更新时间倒序分页列出产品下的会话。
func (c *conversations) List(ctx context.Context, productID string, offset, limit int) (int64, []*model.Conversation, error) {
	var count int64
	var convs []*model.Conversation

	query := c.db.WithContext(ctx).Model(&model.Conversation{}).Where("product_id = ?", productID)
	if err := query.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	if err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&convs).Error; err != nil {
		return 0, nil, err
	}

	return count, convs, nil
}

// AppendMessage 在一个事务内追加消息并刷新会话更新时间。
// 消息只追加不修改。
func (c *conversations) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if msg.Role == model.MessageRoleAssistant {
			if err := tx.Model(&model.Conversation{}).
				Where("id = ?", msg.ConversationID).
				Update("updated_at", time.Now()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMessages 按时间升序返回会话的全部消息。
func (c *conversations) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	var msgs []*model.Message
	if err := c.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

var _ ConversationStore = (*conversations)(nil)
