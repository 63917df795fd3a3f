package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

type fakeChatProvider struct {
	chunks    []llm.StreamChunk
	streamErr error
	// neverDone 为 true 时流在 context 取消前不会自然结束
	neverDone bool

	gotSystemPrompt string
	gotMessages     []llm.Message
}

func (f *fakeChatProvider) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return "", nil
}

func (f *fakeChatProvider) StreamChat(ctx context.Context, messages []llm.Message, systemPrompt string) (<-chan llm.StreamChunk, error) {
	f.gotMessages = messages
	f.gotSystemPrompt = systemPrompt
	if f.streamErr != nil {
		return nil, f.streamErr
	}

	if f.neverDone {
		ch := make(chan llm.StreamChunk)
		go func() {
			defer close(ch)
			for _, chunk := range f.chunks {
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
			<-ctx.Done()
		}()
		return ch, nil
	}

	ch := make(chan llm.StreamChunk, len(f.chunks))
	for _, chunk := range f.chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (f *fakeChatProvider) Name() string { return "fake-chat" }

type fakeConversationStore struct {
	mu       sync.Mutex
	created  []*model.Conversation
	history  []*model.Message
	appended []*model.Message
}

func (f *fakeConversationStore) Create(_ context.Context, conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, conv)
	return nil
}

func (f *fakeConversationStore) Get(_ context.Context, _ string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationStore) List(_ context.Context, _ string, _, _ int) (int64, []*model.Conversation, error) {
	return 0, nil, nil
}

func (f *fakeConversationStore) AppendMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConversationStore) ListMessages(_ context.Context, _ string) ([]*model.Message, error) {
	return f.history, nil
}

func (f *fakeConversationStore) appendedByRole(role string) []*model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for _, msg := range f.appended {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

func newTestAnswerer(provider *fakeChatProvider, convs *fakeConversationStore, chunks *fakeChunkStore) *Answerer {
	retriever := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), chunks)
	return NewAnswerer(retriever, provider, convs, &AnswererConfig{TopK: 5, Threshold: 0.5})
}

func drain(t *testing.T, stream *AnswerStream) string {
	t.Helper()
	var sb strings.Builder
	for chunk := range stream.Chunks {
		if chunk.Err == nil {
			sb.WriteString(chunk.Delta)
		}
	}
	return sb.String()
}

func TestAnswerStreamsAndPersists(t *testing.T) {
	provider := &fakeChatProvider{chunks: []llm.StreamChunk{
		{Delta: "Hel"}, {Delta: "lo"}, {Delta: " world"},
	}}
	convs := &fakeConversationStore{}
	chunks := &fakeChunkStore{
		searchResults: []*model.RetrievalResult{
			{Content: "some passage", Filename: "guide.pdf", PrimaryPage: 3, Strategy: model.RetrievalStrategyVector},
		},
	}

	a := newTestAnswerer(provider, convs, chunks)
	stream, err := a.Answer(context.Background(), &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "hello?",
	})
	require.NoError(t, err)
	require.Len(t, stream.Sources, 1)

	got := drain(t, stream)
	assert.Equal(t, "Hello world", got)

	users := convs.appendedByRole(model.MessageRoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "hello?", users[0].Content)

	assistants := convs.appendedByRole(model.MessageRoleAssistant)
	require.Len(t, assistants, 1)
	assert.Equal(t, "Hello world", assistants[0].Content)
	require.NotNil(t, assistants[0].LLMUsed)
	assert.Equal(t, "fake-chat", *assistants[0].LLMUsed)
}

func TestAnswerGroundedPromptIncludesPassages(t *testing.T) {
	provider := &fakeChatProvider{chunks: []llm.StreamChunk{{Delta: "ok"}}}
	convs := &fakeConversationStore{}
	chunks := &fakeChunkStore{
		searchResults: []*model.RetrievalResult{
			{Content: "reset via the admin panel", Filename: "admin.pdf", PrimaryPage: 7},
		},
	}

	a := newTestAnswerer(provider, convs, chunks)
	stream, err := a.Answer(context.Background(), &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "how to reset?",
	})
	require.NoError(t, err)
	drain(t, stream)

	assert.Contains(t, provider.gotSystemPrompt, "reset via the admin panel")
	assert.Contains(t, provider.gotSystemPrompt, "admin.pdf")
	assert.Contains(t, provider.gotSystemPrompt, "page 7")
}

func TestAnswerWithoutSourcesUsesGenericPrompt(t *testing.T) {
	provider := &fakeChatProvider{chunks: []llm.StreamChunk{{Delta: "ok"}}}
	convs := &fakeConversationStore{}
	chunks := &fakeChunkStore{} // 向量零命中且无关键词候选

	a := newTestAnswerer(provider, convs, chunks)
	stream, err := a.Answer(context.Background(), &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "anything known?",
	})
	require.NoError(t, err)
	assert.Empty(t, stream.Sources)
	drain(t, stream)

	assert.Equal(t, genericPrompt, provider.gotSystemPrompt)
}

func TestAnswerStreamErrorDiscardsBuffer(t *testing.T) {
	provider := &fakeChatProvider{chunks: []llm.StreamChunk{
		{Delta: "partial answer"},
		{Err: errors.New("upstream reset")},
	}}
	convs := &fakeConversationStore{}

	a := newTestAnswerer(provider, convs, &fakeChunkStore{})
	stream, err := a.Answer(context.Background(), &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "q",
	})
	require.NoError(t, err)

	var sawErr bool
	for chunk := range stream.Chunks {
		if chunk.Err != nil {
			sawErr = true
		}
	}
	assert.True(t, sawErr, "error chunk should be forwarded to the caller")

	// 部分内容不落库
	assert.Empty(t, convs.appendedByRole(model.MessageRoleAssistant))
	assert.Len(t, convs.appendedByRole(model.MessageRoleUser), 1)
}

func TestAnswerCancelDiscardsBuffer(t *testing.T) {
	provider := &fakeChatProvider{
		chunks:    []llm.StreamChunk{{Delta: "token one "}, {Delta: "token two"}},
		neverDone: true,
	}
	convs := &fakeConversationStore{}

	ctx, cancel := context.WithCancel(context.Background())
	a := newTestAnswerer(provider, convs, &fakeChunkStore{})
	stream, err := a.Answer(ctx, &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "q",
	})
	require.NoError(t, err)

	cancel()
	for range stream.Chunks {
	}

	assert.Empty(t, convs.appendedByRole(model.MessageRoleAssistant))
}

func TestAnswerHistoryTruncated(t *testing.T) {
	history := make([]*model.Message, 0, 30)
	for i := 0; i < 30; i++ {
		history = append(history, &model.Message{Role: model.MessageRoleUser, Content: "old"})
	}
	provider := &fakeChatProvider{chunks: []llm.StreamChunk{{Delta: "ok"}}}
	convs := &fakeConversationStore{history: history}

	retriever := NewRetriever(NewEmbedder(&fakeEmbeddingProvider{}), &fakeChunkStore{})
	a := NewAnswerer(retriever, provider, convs, &AnswererConfig{TopK: 5, MaxHistory: 10})

	stream, err := a.Answer(context.Background(), &AnswerRequest{
		ConversationID: "conv-1", ProductID: "prod-1", Query: "new question",
	})
	require.NoError(t, err)
	drain(t, stream)

	// 10 条历史 + 当前用户消息
	assert.Len(t, provider.gotMessages, 11)
	assert.Equal(t, "new question", provider.gotMessages[10].Content)
}
