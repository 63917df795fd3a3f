package biz

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
)

type fakeObjectStore struct {
	fakeObjectGetter
	putKeys     []string
	deletedKeys []string
	putErr      error
}

func (f *fakeObjectStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = data
	f.putKeys = append(f.putKeys, key)
	return key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deletedKeys = append(f.deletedKeys, key)
	delete(f.data, key)
	return nil
}

type fakeFactory struct {
	docs  *fakeDocumentStore
	convs *fakeConversationStore
}

func (f *fakeFactory) Documents() store.DocumentStore         { return f.docs }
func (f *fakeFactory) Conversations() store.ConversationStore { return f.convs }
func (f *fakeFactory) Close() error                           { return nil }

func newTestService(t *testing.T, docs *fakeDocumentStore, chunks *fakeChunkStore, objects *fakeObjectStore) *Service {
	t.Helper()
	svc, err := NewService(
		&fakeFactory{docs: docs, convs: &fakeConversationStore{}},
		chunks, objects,
		NewEmbedder(&fakeEmbeddingProvider{}),
		&fakeChatProvider{},
		&ServiceConfig{IngestWorkers: 2, ChunkSize: 100, ChunkOverlap: 20},
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestUploadDocument(t *testing.T) {
	docs := &fakeDocumentStore{}
	objects := &fakeObjectStore{}
	svc := newTestService(t, docs, &fakeChunkStore{}, objects)

	doc, err := svc.UploadDocument(context.Background(), &UploadRequest{
		ProductID:   "prod-1",
		Filename:    "guide.txt",
		ContentType: "text/plain",
		Size:        5,
		Reader:      strings.NewReader("hello"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.FormatTXT, doc.Format)
	assert.Equal(t, model.DocStatusPending, doc.Status)
	require.Len(t, objects.putKeys, 1)
	assert.Equal(t, doc.ObjectKey, objects.putKeys[0])
	assert.Contains(t, doc.ObjectKey, "prod-1/")
	assert.Contains(t, doc.ObjectKey, "guide.txt")
}

func TestUploadDocumentUnsupportedFormat(t *testing.T) {
	objects := &fakeObjectStore{}
	svc := newTestService(t, &fakeDocumentStore{}, &fakeChunkStore{}, objects)

	_, err := svc.UploadDocument(context.Background(), &UploadRequest{
		ProductID:   "prod-1",
		Filename:    "photo.png",
		ContentType: "image/png",
		Reader:      strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnsupportedFormat.Code))
	assert.Empty(t, objects.putKeys, "rejected uploads must not hit object storage")
}

func TestDeleteDocumentRemovesChunksAndObject(t *testing.T) {
	doc := testDocument()
	docs := &fakeDocumentStore{doc: doc}
	chunks := &fakeChunkStore{}
	objects := &fakeObjectStore{fakeObjectGetter: fakeObjectGetter{
		data: map[string][]byte{doc.ObjectKey: []byte("x")},
	}}
	svc := newTestService(t, docs, chunks, objects)

	err := svc.DeleteDocument(context.Background(), doc.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{doc.ID}, chunks.deletedDocs)
	assert.Equal(t, []string{doc.ObjectKey}, objects.deletedKeys)
}

func TestCreateConversationRecordsOwner(t *testing.T) {
	convs := &fakeConversationStore{}
	svc, err := NewService(
		&fakeFactory{docs: &fakeDocumentStore{}, convs: convs},
		&fakeChunkStore{}, &fakeObjectStore{},
		NewEmbedder(&fakeEmbeddingProvider{}),
		&fakeChatProvider{},
		&ServiceConfig{IngestWorkers: 2, ChunkSize: 100, ChunkOverlap: 20},
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	conv, err := svc.CreateConversation(context.Background(), "user-1", "prod-1", "安装问题")
	require.NoError(t, err)

	assert.Equal(t, "user-1", conv.UserID)
	assert.Equal(t, "prod-1", conv.ProductID)
	assert.Equal(t, "安装问题", conv.Title)
	require.Len(t, convs.created, 1)
	assert.Equal(t, "user-1", convs.created[0].UserID)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	svc := newTestService(t, &fakeDocumentStore{}, &fakeChunkStore{}, &fakeObjectStore{})

	err := svc.DeleteDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound.Code))
}
