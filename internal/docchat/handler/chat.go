package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/response"
)

// ChatHandler handles conversation and streaming chat requests.
type ChatHandler struct {
	service *biz.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *biz.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// CreateConversationRequest 创建会话请求。
type CreateConversationRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Title     string `json:"title"`
}

// CreateConversation creates a new conversation.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), req.UserID, req.ProductID, req.Title)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, conv)
}

// ListConversations returns conversations for a product, paginated.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		response.Fail(c, errors.ErrBadRequest.WithMessage("product_id is required"))
		return
	}

	offset, limit := pagination(c)
	total, convs, err := h.service.ListConversations(c.Request.Context(), productID, offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"totalCount": total, "items": convs})
}

// ListMessages returns all messages of a conversation in order.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.service.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, msgs)
}

// ChatRequest 一次聊天回合的请求体。
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// Chat runs one streaming chat turn over Server-Sent Events.
// 事件序列:sources(引用段落)→ 若干 message(增量)→ done 或 error。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	stream, err := h.service.Chat(c.Request.Context(), &biz.AnswerRequest{
		ConversationID: c.Param("id"),
		Query:          req.Query,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("sources", stream.Sources)
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		chunk, ok := <-stream.Chunks
		if !ok {
			c.SSEvent("done", "")
			return false
		}
		if chunk.Err != nil {
			c.SSEvent("error", chunk.Err.Error())
			return false
		}
		c.SSEvent("message", chunk.Delta)
		return true
	})
}
