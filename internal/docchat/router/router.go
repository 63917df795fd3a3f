// Package router provides docchat service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/handler"
)

// Register registers all docchat routes on the gin engine.
func Register(engine *gin.Engine, docs *handler.DocumentHandler, chat *handler.ChatHandler, admin *handler.AdminHandler) {
	logger.Info("Registering docchat routes...")

	engine.GET("/healthz", admin.Healthz)
	engine.GET("/version", admin.Version)
	engine.GET("/metrics", admin.Metrics)

	v1 := engine.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", docs.Upload)
			documents.GET("", docs.List)
			documents.GET("/:id", docs.Get)
			documents.DELETE("/:id", docs.Delete)
			documents.POST("/:id/ingest", docs.Ingest)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.POST("", chat.CreateConversation)
			conversations.GET("", chat.ListConversations)
			conversations.GET("/:id/messages", chat.ListMessages)
			conversations.POST("/:id/chat", chat.Chat)
		}

		v1.POST("/search", admin.Search)
		v1.GET("/stats", admin.Stats)
	}
}
