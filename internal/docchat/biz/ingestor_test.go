package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

type fakeDocumentStore struct {
	doc      *model.Document
	claimOK  bool
	claimErr error

	completed       bool
	chunkCount      int
	pageCount       int
	failedReason    string
	setFailedCalled bool
}

func (f *fakeDocumentStore) Create(_ context.Context, _ *model.Document) error { return nil }

func (f *fakeDocumentStore) Get(_ context.Context, id string) (*model.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, errors.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeDocumentStore) List(_ context.Context, _ string, _, _ int) (int64, []*model.Document, error) {
	return 0, nil, nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, _ string) error { return nil }

func (f *fakeDocumentStore) ClaimProcessing(_ context.Context, _ string) (bool, error) {
	return f.claimOK, f.claimErr
}

func (f *fakeDocumentStore) SetCompleted(_ context.Context, _ string, chunkCount, pageCount int) error {
	f.completed = true
	f.chunkCount = chunkCount
	f.pageCount = pageCount
	return nil
}

func (f *fakeDocumentStore) SetFailed(_ context.Context, _ string, reason string) error {
	f.setFailedCalled = true
	f.failedReason = reason
	return nil
}

type fakeObjectGetter struct {
	data map[string][]byte
	err  error
}

func (f *fakeObjectGetter) GetBytes(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[key], nil
}

func testDocument() *model.Document {
	return &model.Document{
		ID:        "doc-1",
		ProductID: "prod-1",
		Filename:  "manual.txt",
		Format:    model.FormatTXT,
		ObjectKey: "prod-1/doc-1/manual.txt",
	}
}

func newTestIngestor(docs *fakeDocumentStore, chunks *fakeChunkStore, objects *fakeObjectGetter, embedErr error) *Ingestor {
	return NewIngestor(
		NewEmbedder(&fakeEmbeddingProvider{err: embedErr}),
		docs, chunks, objects,
		&IngestorConfig{ChunkSize: 50, ChunkOverlap: 10},
	)
}

func TestIngestSuccess(t *testing.T) {
	docs := &fakeDocumentStore{doc: testDocument(), claimOK: true}
	chunks := &fakeChunkStore{}
	objects := &fakeObjectGetter{data: map[string][]byte{
		"prod-1/doc-1/manual.txt": []byte("First paragraph of the manual.\n\nSecond paragraph with more details about setup.\n\nThird section covers troubleshooting."),
	}}

	ing := newTestIngestor(docs, chunks, objects, nil)
	err := ing.Ingest(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.True(t, docs.completed)
	assert.Equal(t, len(chunks.inserted), docs.chunkCount)
	assert.Equal(t, 1, docs.pageCount)
	require.NotEmpty(t, chunks.inserted)

	// 重新摄取前清理旧块
	assert.Equal(t, []string{"doc-1"}, chunks.deletedDocs)

	for i, chunk := range chunks.inserted {
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.Equal(t, "prod-1", chunk.ProductID)
		assert.Equal(t, "manual.txt", chunk.Filename)
		assert.Equal(t, "prod-1/doc-1/manual.txt", chunk.ObjectKey)
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Embedding)
		assert.NotEmpty(t, chunk.PageNumbers)
		assert.Contains(t, chunk.PageNumbers, chunk.PrimaryPage)
		assert.True(t, len(chunk.SearchText) <= 150)
	}
}

func TestIngestClaimConflict(t *testing.T) {
	docs := &fakeDocumentStore{doc: testDocument(), claimOK: false}
	chunks := &fakeChunkStore{}

	ing := newTestIngestor(docs, chunks, &fakeObjectGetter{}, nil)
	err := ing.Ingest(context.Background(), "doc-1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrIngestConflict.Code))
	assert.Empty(t, chunks.inserted)
	assert.False(t, docs.setFailedCalled, "losing the claim is not a failure")
}

func TestIngestUnknownDocument(t *testing.T) {
	ing := newTestIngestor(&fakeDocumentStore{}, &fakeChunkStore{}, &fakeObjectGetter{}, nil)

	err := ing.Ingest(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound.Code))
}

func TestIngestEmbeddingFailureMarksFailed(t *testing.T) {
	docs := &fakeDocumentStore{doc: testDocument(), claimOK: true}
	chunks := &fakeChunkStore{}
	objects := &fakeObjectGetter{data: map[string][]byte{
		"prod-1/doc-1/manual.txt": []byte("some content to embed"),
	}}

	ing := newTestIngestor(docs, chunks, objects, assert.AnError)
	err := ing.Ingest(context.Background(), "doc-1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrEmbeddingFailure.Code))
	assert.True(t, docs.setFailedCalled)
	assert.NotEmpty(t, docs.failedReason)
	assert.False(t, docs.completed)
	assert.Empty(t, chunks.inserted, "chunks without embeddings must not be committed")
}

func TestIngestUnsupportedFormatMarksFailed(t *testing.T) {
	doc := testDocument()
	doc.Format = "xlsx"
	docs := &fakeDocumentStore{doc: doc, claimOK: true}
	objects := &fakeObjectGetter{data: map[string][]byte{doc.ObjectKey: []byte("x")}}

	ing := newTestIngestor(docs, &fakeChunkStore{}, objects, nil)
	err := ing.Ingest(context.Background(), "doc-1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnsupportedFormat.Code))
	assert.True(t, docs.setFailedCalled)
}

func TestIngestEmptyDocumentMarksFailed(t *testing.T) {
	docs := &fakeDocumentStore{doc: testDocument(), claimOK: true}
	objects := &fakeObjectGetter{data: map[string][]byte{
		"prod-1/doc-1/manual.txt": []byte("   \n\n  "),
	}}

	ing := newTestIngestor(docs, &fakeChunkStore{}, objects, nil)
	err := ing.Ingest(context.Background(), "doc-1")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrParseFailure.Code))
	assert.True(t, docs.setFailedCalled)
}
