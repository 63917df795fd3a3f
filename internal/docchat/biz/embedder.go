package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// defaultEmbedBatchSize 单次批量嵌入的文本数上限，
// 避免一次请求超出服务端的输入限制。
const defaultEmbedBatchSize = 64

// Embedder 将文本转换为固定维度的向量，按批次委托给嵌入服务。
type Embedder struct {
	provider  llm.EmbeddingProvider
	batchSize int
}

// NewEmbedder 创建嵌入器实例。
func NewEmbedder(provider llm.EmbeddingProvider) *Embedder {
	return &Embedder{
		provider:  provider,
		batchSize: defaultEmbedBatchSize,
	}
}

// Embed 嵌入单条文本。
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, errors.ErrEmbeddingFailure.WithCause(err)
	}
	return vec, nil
}

// EmbedBatch 分批嵌入多条文本，保持结果与输入同序。
// 任一批次失败即整体失败，缺失嵌入的块不允许提交。
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		batch, err := e.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, errors.ErrEmbeddingFailure.WithCause(err)
		}
		if len(batch) != end-start {
			logger.Errorw("embedding batch size mismatch",
				"expected", end-start, "got", len(batch), "provider", e.provider.Name())
			return nil, errors.ErrEmbeddingFailure.WithMessagef(
				"provider returned %d embeddings for %d inputs", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}
