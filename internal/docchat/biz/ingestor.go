package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

// ObjectGetter 按对象键读取文档原始字节。
type ObjectGetter interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
}

// IngestorConfig 摄取流水线配置。
type IngestorConfig struct {
	// ChunkSize 单块最大字符数。
	ChunkSize int
	// ChunkOverlap 相邻块重叠字符数。
	ChunkOverlap int
}

// Ingestor 文档摄取流水线:解析、分块、嵌入、写入向量库。
// 单个文档内为顺序流水线，不同文档的任务可以并发执行。
type Ingestor struct {
	parser    *Parser
	chunker   *Chunker
	embedder  *Embedder
	documents store.DocumentStore
	chunks    store.ChunkStore
	objects   ObjectGetter
}

// NewIngestor 创建摄取流水线实例。
func NewIngestor(embedder *Embedder, documents store.DocumentStore, chunks store.ChunkStore, objects ObjectGetter, config *IngestorConfig) *Ingestor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	return &Ingestor{
		parser: NewParser(),
		chunker: NewChunker(&ChunkerConfig{
			ChunkSize:    config.ChunkSize,
			ChunkOverlap: config.ChunkOverlap,
		}),
		embedder:  embedder,
		documents: documents,
		chunks:    chunks,
		objects:   objects,
	}
}

// Ingest 执行一次文档摄取。
// 通过状态字段的条件更新充当软锁:同一文档不会有两个摄取任务
// 并发执行，抢锁失败返回 ErrIngestConflict。
// 重新摄取先删除文档的旧块再写入新块。
func (ing *Ingestor) Ingest(ctx context.Context, documentID string) error {
	doc, err := ing.documents.Get(ctx, documentID)
	if err != nil {
		return errors.ErrNotFound.WithMessagef("document %s", documentID)
	}

	claimed, err := ing.documents.ClaimProcessing(ctx, documentID)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if !claimed {
		return errors.ErrIngestConflict.WithMessagef("document %s", documentID)
	}

	chunkCount, pageCount, err := ing.process(ctx, doc)
	if err != nil {
		logger.Errorw("document ingestion failed",
			"document_id", documentID, "filename", doc.Filename, "error", err.Error())
		if ferr := ing.documents.SetFailed(ctx, documentID, err.Error()); ferr != nil {
			logger.Errorw("failed to record ingestion failure",
				"document_id", documentID, "error", ferr.Error())
		}
		return err
	}

	if err := ing.documents.SetCompleted(ctx, documentID, chunkCount, pageCount); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}

	logger.Infow("document ingested",
		"document_id", documentID, "filename", doc.Filename,
		"chunks", chunkCount, "pages", pageCount)
	return nil
}

// process 执行解析到入库的主流程，返回写入的块数与页数。
func (ing *Ingestor) process(ctx context.Context, doc *model.Document) (int, int, error) {
	data, err := ing.objects.GetBytes(ctx, doc.ObjectKey)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch document object %s: %w", doc.ObjectKey, err)
	}

	parsed, err := ing.parser.ParseWithPages(data, doc.Format)
	if err != nil {
		return 0, 0, err
	}

	paged := ing.chunker.ChunkWithPages(parsed)
	if len(paged) == 0 {
		return 0, 0, errors.ErrParseFailure.WithMessagef("document %s produced no content", doc.ID)
	}

	texts := make([]string, len(paged))
	for i, chunk := range paged {
		texts[i] = chunk.Text
	}
	vectors, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, err
	}

	chunks := make([]*model.Chunk, len(paged))
	for i, pc := range paged {
		chunks[i] = &model.Chunk{
			DocumentID:  doc.ID,
			ProductID:   doc.ProductID,
			Index:       i,
			Content:     pc.Text,
			Embedding:   vectors[i],
			Filename:    doc.Filename,
			ObjectKey:   doc.ObjectKey,
			PageNumbers: pc.PageNumbers,
			PrimaryPage: pc.PrimaryPage,
			SearchText:  SearchText(pc.Text),
		}
	}

	// 先清理旧块再写入，保证重新摄取对读方原子可见
	if err := ing.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return 0, 0, fmt.Errorf("delete stale chunks for %s: %w", doc.ID, err)
	}
	if err := ing.chunks.Insert(ctx, chunks); err != nil {
		return 0, 0, fmt.Errorf("insert chunks for %s: %w", doc.ID, err)
	}

	return len(chunks), parsed.TotalPages, nil
}
