package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/component/milvus"
)

// CollectionName 存放文档块的 Milvus 集合。
const CollectionName = "doc_chunks"

// MilvusChunkStore 实现基于 Milvus 的块存储。
type MilvusChunkStore struct {
	client *milvus.Client
}

// NewMilvusChunkStore 创建 Milvus 块存储实例。
func NewMilvusChunkStore(client *milvus.Client) *MilvusChunkStore {
	return &MilvusChunkStore{client: client}
}

// EnsureCollection 创建块集合（已存在时为空操作）。
func (s *MilvusChunkStore) EnsureCollection(ctx context.Context, dimension int) error {
	schema := &milvus.CollectionSchema{
		Name:        CollectionName,
		Description: "Document chunks with page provenance",
		Dimension:   dimension,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 26},
			{Name: "product_id", DataType: entity.FieldTypeVarChar, MaxLen: 26},
			{Name: "filename", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "object_key", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "search_text", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "primary_page", DataType: entity.FieldTypeInt64},
			// 页码列表编码为逗号分隔字符串，如 "1,2"
			{Name: "page_numbers", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// Insert 批量写入块。
func (s *MilvusChunkStore) Insert(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(chunks))
	metadata := map[string][]any{
		"document_id":  make([]any, len(chunks)),
		"product_id":   make([]any, len(chunks)),
		"filename":     make([]any, len(chunks)),
		"object_key":   make([]any, len(chunks)),
		"content":      make([]any, len(chunks)),
		"search_text":  make([]any, len(chunks)),
		"chunk_index":  make([]any, len(chunks)),
		"primary_page": make([]any, len(chunks)),
		"page_numbers": make([]any, len(chunks)),
	}

	for i, chunk := range chunks {
		embeddings[i] = chunk.Embedding
		metadata["document_id"][i] = chunk.DocumentID
		metadata["product_id"][i] = chunk.ProductID
		metadata["filename"][i] = chunk.Filename
		metadata["object_key"][i] = chunk.ObjectKey
		metadata["content"][i] = chunk.Content
		metadata["search_text"][i] = chunk.SearchText
		metadata["chunk_index"][i] = int64(chunk.Index)
		metadata["primary_page"][i] = int64(chunk.PrimaryPage)
		metadata["page_numbers"][i] = encodePages(chunk.PageNumbers)
	}

	if _, err := s.client.Insert(ctx, CollectionName, &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// DeleteByDocument 删除一个文档的全部块。
func (s *MilvusChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("document_id == %q", documentID)
	return s.client.DeleteByExpr(ctx, CollectionName, expr)
}

var chunkOutputFields = []string{
	"document_id", "product_id", "filename", "object_key", "content",
	"search_text", "chunk_index", "primary_page", "page_numbers",
}

// Search 范围内向量相似度检索，低于阈值的结果被丢弃。
func (s *MilvusChunkStore) Search(ctx context.Context, params *ChunkSearchParams) ([]*model.RetrievalResult, error) {
	results, err := s.client.Search(ctx, CollectionName, &milvus.SearchParams{
		Vector:       params.Embedding,
		TopK:         params.Limit,
		Filter:       fmt.Sprintf("product_id == %q", params.ProductID),
		OutputFields: chunkOutputFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	retrieved := make([]*model.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score < params.Threshold {
			continue
		}
		rr := toRetrievalResult(r.ID, r.Metadata)
		rr.Score = r.Score
		rr.Strategy = model.RetrievalStrategyVector
		retrieved = append(retrieved, rr)
	}

	return retrieved, nil
}

// QueryByProduct 返回范围内的候选块，供关键词回退打分。
func (s *MilvusChunkStore) QueryByProduct(ctx context.Context, productID string, limit int) ([]*model.RetrievalResult, error) {
	filter := fmt.Sprintf("product_id == %q", productID)
	results, err := s.client.Query(ctx, CollectionName, filter, chunkOutputFields, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	retrieved := make([]*model.RetrievalResult, 0, len(results))
	for _, r := range results {
		retrieved = append(retrieved, toRetrievalResult(r.ID, r.Metadata))
	}
	return retrieved, nil
}

// Stats 返回集合中的实体数。
func (s *MilvusChunkStore) Stats(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, CollectionName)
}

// Close 关闭 Milvus 连接。
func (s *MilvusChunkStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func toRetrievalResult(id int64, meta map[string]any) *model.RetrievalResult {
	rr := &model.RetrievalResult{ChunkID: id}
	if v, ok := meta["document_id"].(string); ok {
		rr.DocumentID = v
	}
	if v, ok := meta["filename"].(string); ok {
		rr.Filename = v
	}
	if v, ok := meta["object_key"].(string); ok {
		rr.ObjectKey = v
	}
	if v, ok := meta["content"].(string); ok {
		rr.Content = v
	}
	if v, ok := meta["search_text"].(string); ok {
		rr.SearchText = v
	}
	if v, ok := meta["primary_page"].(int64); ok {
		rr.PrimaryPage = int(v)
	}
	if v, ok := meta["page_numbers"].(string); ok {
		rr.PageNumbers = decodePages(v)
	}
	return rr
}

func encodePages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func decodePages(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	pages := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	return pages
}

var _ ChunkStore = (*MilvusChunkStore)(nil)
