package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// ingestTimeout 单个摄取任务的最长执行时间。
const ingestTimeout = 10 * time.Minute

// ObjectStore 文档原始文件的对象存储访问接口。
type ObjectStore interface {
	ObjectGetter
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ServiceConfig 业务服务配置。
type ServiceConfig struct {
	// IngestWorkers 并发摄取任务数上限。
	IngestWorkers int
	// ChunkSize 分块大小。
	ChunkSize int
	// ChunkOverlap 分块重叠。
	ChunkOverlap int
	// TopK 聊天回合检索的段落数。
	TopK int
	// Threshold 向量检索相似度下限。
	Threshold float32
	// MaxHistory 带入提示词的历史消息上限。
	MaxHistory int
}

// UploadRequest 文档上传注册请求。
type UploadRequest struct {
	ProductID   string
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Service 聚合文档摄取与检索问答的业务入口。
// 不同文档的摄取任务通过协程池并发执行，单文档内的流水线顺序执行。
type Service struct {
	factory   store.Factory
	chunks    store.ChunkStore
	objects   ObjectStore
	ingestor  *Ingestor
	retriever *Retriever
	answerer  *Answerer
	pool      *ants.Pool
}

// NewService 创建业务服务并初始化摄取协程池。
func NewService(factory store.Factory, chunks store.ChunkStore, objects ObjectStore, embedder *Embedder, chatProvider llm.ChatProvider, config *ServiceConfig) (*Service, error) {
	if config.IngestWorkers <= 0 {
		config.IngestWorkers = 4
	}

	pool, err := ants.NewPool(config.IngestWorkers,
		ants.WithPanicHandler(func(p any) {
			logger.Errorw("ingestion worker panic recovered", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}

	ingestor := NewIngestor(embedder, factory.Documents(), chunks, objects, &IngestorConfig{
		ChunkSize:    config.ChunkSize,
		ChunkOverlap: config.ChunkOverlap,
	})
	retriever := NewRetriever(embedder, chunks)
	answerer := NewAnswerer(retriever, chatProvider, factory.Conversations(), &AnswererConfig{
		TopK:       config.TopK,
		Threshold:  config.Threshold,
		MaxHistory: config.MaxHistory,
	})

	return &Service{
		factory:   factory,
		chunks:    chunks,
		objects:   objects,
		ingestor:  ingestor,
		retriever: retriever,
		answerer:  answerer,
		pool:      pool,
	}, nil
}

// UploadDocument 注册一个上传的文档:写入对象存储并创建 pending 记录。
// 摄取不自动触发，由调用方显式发起。
func (s *Service) UploadDocument(ctx context.Context, req *UploadRequest) (*model.Document, error) {
	format, ok := FormatFromContentType(req.ContentType, req.Filename)
	if !ok {
		return nil, errors.ErrUnsupportedFormat.WithMessagef("content type %q, filename %q", req.ContentType, req.Filename)
	}

	id := ulid.Make().String()
	objectKey := fmt.Sprintf("%s/%s/%s", req.ProductID, id, req.Filename)
	if _, err := s.objects.Put(ctx, objectKey, req.Reader, req.Size, req.ContentType); err != nil {
		return nil, fmt.Errorf("store document object: %w", err)
	}

	doc := &model.Document{
		ID:          id,
		ProductID:   req.ProductID,
		Filename:    req.Filename,
		Format:      format,
		ContentType: req.ContentType,
		ObjectKey:   objectKey,
		SizeBytes:   req.Size,
		Status:      model.DocStatusPending,
	}
	if err := s.factory.Documents().Create(ctx, doc); err != nil {
		// 对象已写入但记录创建失败，回收对象避免泄漏
		if derr := s.objects.Delete(ctx, objectKey); derr != nil {
			logger.Warnw("failed to clean up orphaned object", "key", objectKey, "error", derr.Error())
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}

	logger.Infow("document registered",
		"document_id", doc.ID, "product_id", doc.ProductID,
		"filename", doc.Filename, "format", doc.Format, "size", doc.SizeBytes)
	return doc, nil
}

// TriggerIngest 异步触发一次文档摄取。
// 抢锁冲突等业务错误在任务内部处理并反映到文档状态；
// 此处仅在协程池拒绝任务时返回错误。
func (s *Service) TriggerIngest(_ context.Context, documentID string) error {
	err := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		m := metrics.GetPipelineMetrics()
		if err := s.ingestor.Ingest(ctx, documentID); err != nil {
			if errors.IsCode(err, errors.ErrIngestConflict.Code) {
				m.RecordIngestConflict()
				return
			}
			m.RecordIngestion(0, err)
			return
		}

		doc, gerr := s.factory.Documents().Get(ctx, documentID)
		if gerr != nil {
			m.RecordIngestion(0, nil)
			return
		}
		m.RecordIngestion(doc.ChunkCount, nil)
	})
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	return nil
}

// GetDocument 查询单个文档。
func (s *Service) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.factory.Documents().Get(ctx, id)
	if err != nil {
		return nil, errors.ErrNotFound.WithMessagef("document %s", id)
	}
	return doc, nil
}

// ListDocuments 分页列出产品范围内的文档。
func (s *Service) ListDocuments(ctx context.Context, productID string, offset, limit int) (*model.DocumentList, error) {
	total, docs, err := s.factory.Documents().List(ctx, productID, offset, limit)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &model.DocumentList{TotalCount: total, Items: docs}, nil
}

// DeleteDocument 删除文档及其块与原始对象。
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.factory.Documents().Get(ctx, id)
	if err != nil {
		return errors.ErrNotFound.WithMessagef("document %s", id)
	}

	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", id, err)
	}
	if err := s.objects.Delete(ctx, doc.ObjectKey); err != nil {
		logger.Warnw("failed to delete document object", "key", doc.ObjectKey, "error", err.Error())
	}
	if err := s.factory.Documents().Delete(ctx, id); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	logger.Infow("document deleted", "document_id", id, "filename", doc.Filename)
	return nil
}

// Search 在产品范围内执行一次检索并记录命中路径。
func (s *Service) Search(ctx context.Context, query, productID string, limit int, threshold float32) ([]*model.RetrievalResult, error) {
	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, query, productID, limit, threshold)
	if err != nil {
		return nil, err
	}

	strategy := ""
	if len(results) > 0 {
		strategy = results[0].Strategy
	}
	metrics.GetPipelineMetrics().RecordRetrieval(strategy, len(results), time.Since(start))
	return results, nil
}

// Chat 执行一次流式聊天回合。产品范围取自会话记录。
func (s *Service) Chat(ctx context.Context, req *AnswerRequest) (*AnswerStream, error) {
	conv, err := s.factory.Conversations().Get(ctx, req.ConversationID)
	if err != nil {
		return nil, errors.ErrNotFound.WithMessagef("conversation %s", req.ConversationID)
	}
	req.ProductID = conv.ProductID

	metrics.GetPipelineMetrics().RecordChatStream()
	return s.answerer.Answer(ctx, req)
}

// CreateConversation 创建会话。
func (s *Service) CreateConversation(ctx context.Context, userID, productID, title string) (*model.Conversation, error) {
	conv := &model.Conversation{UserID: userID, ProductID: productID, Title: title}
	if err := s.factory.Conversations().Create(ctx, conv); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return conv, nil
}

// ListConversations 分页列出产品范围内的会话。
func (s *Service) ListConversations(ctx context.Context, productID string, offset, limit int) (int64, []*model.Conversation, error) {
	total, convs, err := s.factory.Conversations().List(ctx, productID, offset, limit)
	if err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	return total, convs, nil
}

// ListMessages 返回会话全部消息。
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	msgs, err := s.factory.Conversations().ListMessages(ctx, conversationID)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return msgs, nil
}

// ChunkStats 返回向量库中的实体数。
func (s *Service) ChunkStats(ctx context.Context) (int64, error) {
	return s.chunks.Stats(ctx)
}

// Close 释放协程池。
func (s *Service) Close() {
	s.pool.Release()
}
