package model

import (
	"time"
)

// 消息角色。
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Conversation represents a chat conversation scoped to one product.
// UpdatedAt 在每条新的助手消息写入时刷新。
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26);comment:会话ID(ULID)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(26);index:idx_conv_user;not null;comment:所属用户"`
	ProductID string    `json:"product_id" gorm:"type:varchar(26);index:idx_conv_product;not null;comment:所属产品"`
	Title     string    `json:"title" gorm:"type:varchar(255);comment:会话标题"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// Message represents one append-only chat message.
// LLMUsed 记录生成该消息的供应商，用户消息为 nil。
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(26);comment:消息ID(ULID)"`
	ConversationID string    `json:"conversation_id" gorm:"type:varchar(26);index:idx_msg_conv;not null;comment:所属会话"`
	Role           string    `json:"role" gorm:"type:varchar(16);not null;comment:角色 user/assistant"`
	Content        string    `json:"content" gorm:"type:longtext;not null;comment:消息内容"`
	LLMUsed        *string   `json:"llm_used,omitempty" gorm:"type:varchar(64);comment:生成该消息的LLM供应商"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}
