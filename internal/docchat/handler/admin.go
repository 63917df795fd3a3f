package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/pkg/errors"
	"github.com/kart-io/docchat/pkg/response"
)

// AdminHandler handles health, metrics and search endpoints.
type AdminHandler struct {
	service *biz.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *biz.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// Healthz reports service liveness.
func (h *AdminHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version reports build information.
func (h *AdminHandler) Version(c *gin.Context) {
	response.OK(c, version.Get())
}

// Metrics exports business metrics in Prometheus text format.
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4",
		[]byte(metrics.GetPipelineMetrics().Export("docchat", "pipeline")))
}

// Stats returns pipeline counters and the vector store entity count.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats := metrics.GetPipelineMetrics().Stats()
	if count, err := h.service.ChunkStats(c.Request.Context()); err == nil {
		stats["chunk_entities"] = count
	}
	response.OK(c, stats)
}

// SearchRequest 检索调试请求。
type SearchRequest struct {
	Query     string  `json:"query" binding:"required"`
	ProductID string  `json:"product_id" binding:"required"`
	Limit     int     `json:"limit"`
	Threshold float32 `json:"threshold"`
}

// Search exposes the retriever directly, useful for relevance debugging.
func (h *AdminHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}
	if req.Limit <= 0 || req.Limit > 50 {
		req.Limit = 5
	}

	results, err := h.service.Search(c.Request.Context(), req.Query, req.ProductID, req.Limit, req.Threshold)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"results": results, "count": len(results)})
}
