// Package api serves the interactive session to browser renderers as JSON
// over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the handler's routes under /api.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "searchId": h.session.SearchID()})
	})

	apiRouter := router.Group("/api")
	{
		apiRouter.GET("/availability", h.GetAvailability)
		apiRouter.POST("/search", h.RunSearch)
		apiRouter.GET("/window", h.GetWindow)
		apiRouter.PUT("/window", h.SetWindow)
		apiRouter.GET("/granularity", h.GetGranularity)
		apiRouter.PUT("/granularity", h.SetGranularity)

		filterRouter := apiRouter.Group("/filters")
		{
			filterRouter.GET("", h.GetFilters)
			filterRouter.POST("/node-types/:type", h.ToggleNodeType)
			filterRouter.POST("/link-kinds/:kind", h.ToggleLinkKind)
			filterRouter.POST("/hosts/:host", h.ToggleHost)
			filterRouter.POST("/colors/:kind", h.ToggleColor)
			filterRouter.PUT("/grouping", h.SetGrouping)
		}

		apiRouter.GET("/graph", h.GetGraph)
		apiRouter.GET("/histogram", h.GetHistogram)
		apiRouter.GET("/hosts", h.GetHosts)
		apiRouter.GET("/details/*id", h.GetDetails)
		apiRouter.GET("/diagnostics", h.GetDiagnostics)
		apiRouter.GET("/export.csv", h.ExportCSV)
	}

	return router
}

// requestLogger logs one line per request at Debug, or Warn for 4xx/5xx.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if status >= 400 {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
