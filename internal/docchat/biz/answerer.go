package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/llm"
)

// groundedPromptTemplate 有检索结果时的系统提示词。
const groundedPromptTemplate = `You are a technical support assistant. Answer the user's question using ONLY the documentation passages below. Cite the passage numbers you used, e.g. [1][3]. If the passages do not contain the answer, say so instead of guessing.

Documentation passages:
{{context}}`

// genericPrompt 无检索结果时的兜底系统提示词。
// 检索失败或语料为空不阻塞聊天，只是失去文档支撑。
const genericPrompt = `You are a technical support assistant. No relevant documentation was found for this question. Answer from general knowledge, and tell the user the answer is not backed by the product documentation.`

// persistTimeout 流结束后持久化助手消息的超时时间。
const persistTimeout = 10 * time.Second

// AnswererConfig 答案流水线配置。
type AnswererConfig struct {
	// TopK 检索的段落数。
	TopK int
	// Threshold 向量检索的相似度下限。
	Threshold float32
	// MaxHistory 带入提示词的历史消息条数上限。
	MaxHistory int
}

// AnswerRequest 一次聊天回合的输入。
type AnswerRequest struct {
	ConversationID string
	ProductID      string
	Query          string
}

// AnswerStream 一次聊天回合的流式输出。
// Sources 在流开始前即可用，供调用方先行下发引用信息。
type AnswerStream struct {
	Sources []*model.RetrievalResult
	Chunks  <-chan llm.StreamChunk
}

// Answerer 组装提示词、调用流式补全并在流完整结束后持久化回复。
type Answerer struct {
	retriever     *Retriever
	chatProvider  llm.ChatProvider
	conversations store.ConversationStore
	config        *AnswererConfig
}

// NewAnswerer 创建答案流水线实例。
func NewAnswerer(retriever *Retriever, chatProvider llm.ChatProvider, conversations store.ConversationStore, config *AnswererConfig) *Answerer {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.MaxHistory <= 0 {
		config.MaxHistory = 20
	}
	return &Answerer{
		retriever:     retriever,
		chatProvider:  chatProvider,
		conversations: conversations,
		config:        config,
	}
}

// Answer 执行一次聊天回合:检索、生成、转发流式输出。
// 用户消息立即持久化；助手消息仅在流完整结束后持久化，
// 流中断或调用方取消时累积缓冲被丢弃，不落库部分内容。
func (a *Answerer) Answer(ctx context.Context, req *AnswerRequest) (*AnswerStream, error) {
	history, err := a.loadHistory(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	if err := a.conversations.AppendMessage(ctx, &model.Message{
		ConversationID: req.ConversationID,
		Role:           model.MessageRoleUser,
		Content:        req.Query,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	sources := a.retrieveSources(ctx, req)
	systemPrompt := buildSystemPrompt(sources)

	messages := append(history, llm.Message{Role: llm.RoleUser, Content: req.Query})
	upstream, err := a.chatProvider.StreamChat(ctx, messages, systemPrompt)
	if err != nil {
		return nil, errors.ErrProviderFailure.WithCause(err)
	}

	out := make(chan llm.StreamChunk)
	go a.relay(ctx, req, upstream, out)

	return &AnswerStream{Sources: sources, Chunks: out}, nil
}

// retrieveSources 检索引用段落。检索永不阻塞聊天回合:
// 出错时记录日志并以空结果继续。
func (a *Answerer) retrieveSources(ctx context.Context, req *AnswerRequest) []*model.RetrievalResult {
	sources, err := a.retriever.Retrieve(ctx, req.Query, req.ProductID, a.config.TopK, a.config.Threshold)
	if err != nil {
		logger.Warnw("retrieval failed, answering without grounding",
			"error", err.Error(), "product_id", req.ProductID)
		return nil
	}
	return sources
}

// relay 将上游流逐块转发给调用方，同时累积完整回复。
// 仅在上游正常关闭且无错误块时持久化助手消息。
func (a *Answerer) relay(ctx context.Context, req *AnswerRequest, upstream <-chan llm.StreamChunk, out chan<- llm.StreamChunk) {
	defer close(out)

	var sb strings.Builder
	for chunk := range upstream {
		select {
		case out <- chunk:
		case <-ctx.Done():
			logger.Infow("caller disconnected, discarding partial answer",
				"conversation_id", req.ConversationID, "buffered", sb.Len())
			metrics.GetPipelineMetrics().RecordChatCancelled()
			return
		}

		if chunk.Err != nil {
			logger.Errorw("stream terminated with error, discarding partial answer",
				"error", chunk.Err.Error(), "conversation_id", req.ConversationID)
			metrics.GetPipelineMetrics().RecordChatFailed()
			return
		}
		sb.WriteString(chunk.Delta)
	}

	if ctx.Err() != nil {
		metrics.GetPipelineMetrics().RecordChatCancelled()
		return
	}
	a.persistAnswer(req, sb.String())
}

// persistAnswer 持久化完整的助手回复。调用方的 context 此时可能已
// 结束，使用独立的超时 context 执行写入。
func (a *Answerer) persistAnswer(req *AnswerRequest, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	providerName := a.chatProvider.Name()
	if err := a.conversations.AppendMessage(ctx, &model.Message{
		ConversationID: req.ConversationID,
		Role:           model.MessageRoleAssistant,
		Content:        content,
		LLMUsed:        &providerName,
	}); err != nil {
		logger.Errorw("failed to persist assistant message",
			"error", err.Error(), "conversation_id", req.ConversationID)
		return
	}
	metrics.GetPipelineMetrics().RecordChatPersisted()
	logger.Infow("assistant message persisted",
		"conversation_id", req.ConversationID, "length", len(content), "llm", providerName)
}

// loadHistory 加载会话历史并转换为供应商消息格式。
func (a *Answerer) loadHistory(ctx context.Context, conversationID string) ([]llm.Message, error) {
	msgs, err := a.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	if len(msgs) > a.config.MaxHistory {
		msgs = msgs[len(msgs)-a.config.MaxHistory:]
	}

	history := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		history = append(history, llm.Message{
			Role:    llm.Role(msg.Role),
			Content: msg.Content,
		})
	}
	return history, nil
}

// buildSystemPrompt 根据检索结果组装系统提示词。
func buildSystemPrompt(sources []*model.RetrievalResult) string {
	if len(sources) == 0 {
		return genericPrompt
	}

	var contextBuilder strings.Builder
	for i, source := range sources {
		contextBuilder.WriteString(fmt.Sprintf("[%d] From %s (page %d):\n%s\n\n",
			i+1, source.Filename, source.PrimaryPage, source.Content))
	}
	return strings.ReplaceAll(groundedPromptTemplate, "{{context}}", contextBuilder.String())
}
