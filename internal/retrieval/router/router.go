// Package router provides retrieval service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/propintel/internal/retrieval/handler"
)

// Register registers the retrieval service routes.
func Register(engine *gin.Engine, h *handler.RetrievalHandler) {
	logger.Info("Registering retrieval routes...")

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		retrieval := v1.Group("/retrieval")
		{
			// Query endpoints
			retrieval.POST("/query", h.Query)
			retrieval.POST("/batch", h.BatchQuery)

			// Answer validation
			retrieval.POST("/validate", h.Validate)

			// Stats endpoints
			retrieval.GET("/stats", h.Stats)
			retrieval.POST("/stats/reset", h.ResetStats)

			// Collection and cache management
			retrieval.GET("/collections/:name/stats", h.CollectionStats)
			retrieval.GET("/cache/stats", h.CacheStats)
			retrieval.DELETE("/cache", h.ClearCache)
		}
	}

	logger.Info("HTTP routes registered")
}
