package store

import (
	"context"

	"github.com/kart-io/docchat/internal/model"
)

// Factory defines the factory interface for creating stores.
type Factory interface {
	Documents() DocumentStore
	Conversations() ConversationStore
	Close() error
}

// DocumentStore defines the document storage interface.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, productID string, offset, limit int) (int64, []*model.Document, error)
	Delete(ctx context.Context, id string) error

	// ClaimProcessing 以条件更新的方式原子地将文档状态置为 processing。
	// 文档已处于 processing 状态时返回 false，摄取任务据此放弃执行。
	ClaimProcessing(ctx context.Context, id string) (bool, error)

	// SetCompleted 标记摄取成功并记录块数与页数。
	SetCompleted(ctx context.Context, id string, chunkCount, pageCount int) error

	// SetFailed 标记摄取失败并记录原因。
	SetFailed(ctx context.Context, id string, reason string) error
}

// ConversationStore defines the conversation and message storage interface.
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, id string) (*model.Conversation, error)
	List(ctx context.Context, productID string, offset, limit int) (int64, []*model.Conversation, error)

	// AppendMessage 追加一条消息；助手消息同时刷新会话的更新时间。
	AppendMessage(ctx context.Context, msg *model.Message) error

	// ListMessages 按时间升序返回会话的全部消息。
	ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// ChunkSearchParams 向量检索参数。
type ChunkSearchParams struct {
	// Embedding 查询向量。
	Embedding []float32
	// ProductID 检索范围，防止跨产品泄漏。
	ProductID string
	// Limit 最大返回条数。
	Limit int
	// Threshold 余弦相似度下限，低于该值的结果被丢弃。
	Threshold float32
}

// ChunkStore defines the vector chunk storage interface.
type ChunkStore interface {
	// EnsureCollection 创建集合（幂等）。
	EnsureCollection(ctx context.Context, dimension int) error

	// Insert 批量写入块，只增不改。
	Insert(ctx context.Context, chunks []*model.Chunk) error

	// DeleteByDocument 删除一个文档的全部块，用于重新摄取。
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search 范围内向量相似度检索。
	Search(ctx context.Context, params *ChunkSearchParams) ([]*model.RetrievalResult, error)

	// QueryByProduct 返回范围内的候选块（无向量排序），供关键词回退使用。
	QueryByProduct(ctx context.Context, productID string, limit int) ([]*model.RetrievalResult, error)

	// Stats 返回集合中的实体数。
	Stats(ctx context.Context) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
