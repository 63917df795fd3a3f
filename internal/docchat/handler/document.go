// Package handler provides HTTP handlers for the docchat service.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/response"
)

// DocumentHandler handles document upload and ingestion requests.
type DocumentHandler struct {
	service       *biz.Service
	maxUploadSize int64
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(service *biz.Service, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Upload registers an uploaded document and stores its raw bytes.
func (h *DocumentHandler) Upload(c *gin.Context) {
	productID := c.PostForm("product_id")
	if productID == "" {
		response.Fail(c, errors.ErrBadRequest.WithMessage("product_id is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, errors.ErrBadRequest.WithMessage("file is required"))
		return
	}
	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		response.Fail(c, errors.ErrBadRequest.WithMessagef(
			"file exceeds the %d byte upload limit", h.maxUploadSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}
	defer file.Close()

	doc, err := h.service.UploadDocument(c.Request.Context(), &biz.UploadRequest{
		ProductID:   productID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.OK(c, doc)
}

// Ingest triggers asynchronous ingestion of a document.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	id := c.Param("id")

	// 先确认文档存在，异步任务内部只处理状态流转
	if _, err := h.service.GetDocument(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.service.TriggerIngest(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}

	response.OK(c, gin.H{"document_id": id, "status": "accepted"})
}

// Get returns one document with its processing status.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, doc)
}

// List returns documents for a product, paginated.
func (h *DocumentHandler) List(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		response.Fail(c, errors.ErrBadRequest.WithMessage("product_id is required"))
		return
	}

	offset, limit := pagination(c)
	list, err := h.service.ListDocuments(c.Request.Context(), productID, offset, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, list)
}

// Delete removes a document, its chunks and its stored object.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, nil)
}

// pagination 解析分页参数，限制单页最大 100 条。
func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
