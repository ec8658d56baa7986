package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/models"
)

// Health reports that the API is serving.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Status probes the DNS server and the reverse proxy.
func (h *Handler) Status(c *gin.Context) {
	status := h.svc.Health(c.Request.Context())
	c.JSON(http.StatusOK, models.HealthResponse{DNS: status.DNS, Proxy: status.Proxy})
}
