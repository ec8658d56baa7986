package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/handlers"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/middleware"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, apiKey string) {
	api := r.Group("/api/v1")
	api.GET("/health", h.Health)

	protected := api.Group("")
	if apiKey != "" {
		protected.Use(middleware.RequireAPIKey(apiKey))
	}

	protected.GET("/status", h.Status)

	protected.GET("/mappings", h.ListMappings)
	protected.POST("/mappings", h.CreateMapping)
	protected.GET("/mappings/:ref", h.GetMapping)
	protected.GET("/mappings/:ref/history", h.History)
	protected.DELETE("/mappings/:ref", h.DeleteMapping)
}
