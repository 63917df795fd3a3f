package biz

import (
	"context"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

const (
	// maxKeywords 关键词回退使用的关键词数上限。
	maxKeywords = 5
	// minKeywordLen 参与打分的关键词最小长度。
	minKeywordLen = 3
	// keywordCandidateLimit 关键词回退一次拉取的候选块数上限。
	keywordCandidateLimit = 200
)

// Retriever 两级检索:向量相似度为主路径，向量检索出错或零命中时
// 无条件回退到关键词重合度打分。回退保证聊天路径只会降级，
// 不会因向量索引缺失或嵌入服务故障而完全失败。
type Retriever struct {
	embedder *Embedder
	chunks   store.ChunkStore
}

// NewRetriever 创建检索器实例。
func NewRetriever(embedder *Embedder, chunks store.ChunkStore) *Retriever {
	return &Retriever{embedder: embedder, chunks: chunks}
}

// Retrieve 在指定产品范围内检索与查询相关的块。
// 向量检索失败不会向调用方传播，只记录日志并走关键词回退。
func (r *Retriever) Retrieve(ctx context.Context, query, productID string, limit int, threshold float32) ([]*model.RetrievalResult, error) {
	results, err := r.vectorSearch(ctx, query, productID, limit, threshold)
	if err != nil {
		logger.Warnw("vector search failed, falling back to keyword search",
			"error", err.Error(), "product_id", productID)
		return r.keywordSearch(ctx, query, productID, limit)
	}
	if len(results) == 0 {
		logger.Debugw("vector search returned no results, trying keyword search",
			"product_id", productID, "query_len", len(query))
		return r.keywordSearch(ctx, query, productID, limit)
	}
	return results, nil
}

func (r *Retriever) vectorSearch(ctx context.Context, query, productID string, limit int, threshold float32) ([]*model.RetrievalResult, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.chunks.Search(ctx, &store.ChunkSearchParams{
		Embedding: embedding,
		ProductID: productID,
		Limit:     limit,
		Threshold: threshold,
	})
	if err != nil {
		return nil, errors.ErrVectorSearchFailure.WithCause(err)
	}
	return results, nil
}

// keywordSearch 关键词回退:按查询关键词在块内容中的出现比例打分。
// 分数与向量相似度不在同一量纲，结果通过 Strategy 字段区分。
func (r *Retriever) keywordSearch(ctx context.Context, query, productID string, limit int) ([]*model.RetrievalResult, error) {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	candidates, err := r.chunks.QueryByProduct(ctx, productID, keywordCandidateLimit)
	if err != nil {
		logger.Warnw("keyword candidate query failed", "error", err.Error(), "product_id", productID)
		return nil, nil
	}

	var results []*model.RetrievalResult
	for _, candidate := range candidates {
		score := keywordScore(candidate.Content, keywords)
		if score <= 0 {
			continue
		}
		candidate.Score = score
		candidate.Strategy = model.RetrievalStrategyKeyword
		results = append(results, candidate)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// extractKeywords 将查询切分为小写关键词，丢弃过短的词，最多取 5 个。
func extractKeywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, maxKeywords)
	for _, word := range words {
		if len(word) < minKeywordLen {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// keywordScore 返回命中关键词数与关键词总数之比。
func keywordScore(content string, keywords []string) float32 {
	lowered := strings.ToLower(content)
	matched := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			matched++
		}
	}
	return float32(matched) / float32(len(keywords))
}
