package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api/models"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/provisioner"
)

// statusFor maps a failed Result onto an HTTP status code.
func statusFor(reason provisioner.Reason) int {
	switch reason {
	case provisioner.ReasonInvalid:
		return http.StatusBadRequest
	case provisioner.ReasonNotFound:
		return http.StatusNotFound
	case provisioner.ReasonDuplicate:
		return http.StatusConflict
	case provisioner.ReasonRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func operationResponse(res provisioner.Result) models.OperationResponse {
	resp := models.OperationResponse{
		Success:  res.Success,
		Message:  res.Message,
		Warnings: res.Warnings,
	}
	if res.Mapping != nil {
		m := models.FromMapping(*res.Mapping)
		resp.Mapping = &m
	}
	return resp
}

// ListMappings returns all active mappings.
func (h *Handler) ListMappings(c *gin.Context) {
	ms, err := h.svc.ListMappings(c.Request.Context())
	if err != nil {
		h.log.Error(err, "listing mappings")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list mappings"})
		return
	}
	c.JSON(http.StatusOK, models.FromMappings(ms))
}

// GetMapping returns one active mapping by ID or hostname.
func (h *Handler) GetMapping(c *gin.Context) {
	ref := c.Param("ref")
	m, err := h.svc.GetMapping(c.Request.Context(), ref)
	if errors.Is(err, mapping.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no active mapping for " + ref})
		return
	}
	if err != nil {
		h.log.Error(err, "getting mapping", "ref", ref)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get mapping"})
		return
	}
	c.JSON(http.StatusOK, models.FromMapping(m))
}

// History returns every record stored for a hostname, removed ones included.
func (h *Handler) History(c *gin.Context) {
	ref := c.Param("ref")
	ms, err := h.svc.History(c.Request.Context(), ref)
	if err != nil {
		h.log.Error(err, "getting history", "hostname", ref)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get history"})
		return
	}
	if len(ms) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no records for " + ref})
		return
	}
	c.JSON(http.StatusOK, models.FromMappings(ms))
}

// CreateMapping provisions a new hostname.
func (h *Handler) CreateMapping(c *gin.Context) {
	var req models.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	res := h.svc.AddMapping(c.Request.Context(), req.Hostname, req.TargetAddress, req.TargetPort)
	if !res.Success {
		c.JSON(statusFor(res.Reason), operationResponse(res))
		return
	}
	c.JSON(http.StatusCreated, operationResponse(res))
}

// DeleteMapping removes a mapping by ID or hostname. Remote cleanup problems
// are returned as warnings on a 200 response.
func (h *Handler) DeleteMapping(c *gin.Context) {
	res := h.svc.RemoveMapping(c.Request.Context(), c.Param("ref"))
	if !res.Success {
		c.JSON(statusFor(res.Reason), operationResponse(res))
		return
	}
	c.JSON(http.StatusOK, operationResponse(res))
}
