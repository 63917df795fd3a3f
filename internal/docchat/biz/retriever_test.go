package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
)

type fakeEmbeddingProvider struct {
	err error
}

func (f *fakeEmbeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbeddingProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbeddingProvider) Name() string { return "fake" }

type fakeChunkStore struct {
	searchResults []*model.RetrievalResult
	searchErr     error
	candidates    []*model.RetrievalResult
	queryErr      error

	searchCalls int
	queryCalls  int
	inserted    []*model.Chunk
	deletedDocs []string
	insertErr   error
}

func (f *fakeChunkStore) EnsureCollection(_ context.Context, _ int) error { return nil }

func (f *fakeChunkStore) Insert(_ context.Context, chunks []*model.Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeChunkStore) DeleteByDocument(_ context.Context, documentID string) error {
	f.deletedDocs = append(f.deletedDocs, documentID)
	return nil
}

func (f *fakeChunkStore) Search(_ context.Context, _ *store.ChunkSearchParams) ([]*model.RetrievalResult, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeChunkStore) QueryByProduct(_ context.Context, _ string, _ int) ([]*model.RetrievalResult, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.candidates, nil
}

func (f *fakeChunkStore) Stats(_ context.Context) (int64, error) { return int64(len(f.inserted)), nil }

func (f *fakeChunkStore) Close(_ context.Context) error { return nil }

func vectorResult(content string, score float32) *model.RetrievalResult {
	return &model.RetrievalResult{
		Content:  content,
		Score:    score,
		Strategy: model.RetrievalStrategyVector,
	}
}

func TestRetrieveVectorPath(t *testing.T) {
	chunks := &fakeChunkStore{
		searchResults: []*model.RetrievalResult{vectorResult("milvus setup guide", 0.92)},
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)

	results, err := r.Retrieve(context.Background(), "how to set up", "prod-1", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.RetrievalStrategyVector, results[0].Strategy)
	assert.Equal(t, 0, chunks.queryCalls, "keyword fallback should not run")
}

func TestRetrieveFallsBackOnSearchError(t *testing.T) {
	chunks := &fakeChunkStore{
		searchErr: errors.New("collection not loaded"),
		candidates: []*model.RetrievalResult{
			{Content: "restart the gateway service after config changes"},
			{Content: "unrelated billing notes"},
		},
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)

	results, err := r.Retrieve(context.Background(), "restart gateway config", "prod-1", 5, 0.5)
	require.NoError(t, err, "vector search error must not propagate")
	require.Len(t, results, 1)
	assert.Equal(t, model.RetrievalStrategyKeyword, results[0].Strategy)
	assert.Contains(t, results[0].Content, "gateway")
}

func TestRetrieveFallsBackOnEmbeddingError(t *testing.T) {
	chunks := &fakeChunkStore{
		candidates: []*model.RetrievalResult{
			{Content: "password reset instructions"},
		},
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{err: errors.New("embed service down")}), chunks)

	results, err := r.Retrieve(context.Background(), "password reset", "prod-1", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, chunks.searchCalls, "vector search skipped when embedding fails")
}

func TestRetrieveFallsBackOnZeroResults(t *testing.T) {
	chunks := &fakeChunkStore{
		candidates: []*model.RetrievalResult{
			{Content: "the export button lives under settings"},
		},
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)

	results, err := r.Retrieve(context.Background(), "export settings", "prod-1", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.RetrievalStrategyKeyword, results[0].Strategy)
	assert.Equal(t, 1, chunks.searchCalls)
}

func TestKeywordScoringAndOrdering(t *testing.T) {
	chunks := &fakeChunkStore{
		searchErr: errors.New("down"),
		candidates: []*model.RetrievalResult{
			{Content: "alpha only"},
			{Content: "alpha beta gamma all present"},
			{Content: "nothing relevant here"},
			{Content: "alpha beta pair"},
		},
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)

	results, err := r.Retrieve(context.Background(), "alpha beta gamma", "prod-1", 2, 0.5)
	require.NoError(t, err)

	// 零分候选被丢弃且按分数降序截断到 limit
	require.Len(t, results, 2)
	assert.Equal(t, "alpha beta gamma all present", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, "alpha beta pair", results[1].Content)
	assert.InDelta(t, 2.0/3.0, results[1].Score, 0.001)
}

func TestKeywordFallbackNeverErrors(t *testing.T) {
	chunks := &fakeChunkStore{
		searchErr: errors.New("vector down"),
		queryErr:  errors.New("candidate query down"),
	}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)

	results, err := r.Retrieve(context.Background(), "anything at all", "prod-1", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"restart", "gateway"}, extractKeywords("Restart my gateway"))
	assert.Empty(t, extractKeywords("a an to"))

	// 关键词上限为 5
	kw := extractKeywords("one two three four five six seven eight")
	assert.Len(t, kw, 5)
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, kw)
}
