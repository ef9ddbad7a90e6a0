package http

import (
	"net/http"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/pkg/errors"

	"github.com/gin-gonic/gin"
)

var _ ports.IngressHTTPHandler = (*IngressHandler)(nil)

type IngressHandler struct {
	provisioner ports.IngressProvisioner
	streamKeys  ports.StreamKeysService
}

func NewIngressHandler(provisioner ports.IngressProvisioner, streamKeys ports.StreamKeysService) *IngressHandler {
	return &IngressHandler{
		provisioner: provisioner,
		streamKeys:  streamKeys,
	}
}

// SetupRoutes registers the broadcaster-facing routes behind the given
// middleware chain (rate limiting, then auth).
func (h *IngressHandler) SetupRoutes(router gin.IRouter, middlewares ...gin.HandlerFunc) {
	api := router.Group("/api/v1/ingress", middlewares...)
	{
		api.POST("", h.Provision)
		api.GET("/keys", h.GetStreamKeys)
	}
}

type provisionRequest struct {
	InputType string `json:"input_type" binding:"required"`
}

// Provision resets the caller's ingest resources and returns fresh
// credentials.
func (h *IngressHandler) Provision(c *gin.Context) {
	b, ok := middleware.BroadcasterFromContext(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("input_type is required"))
		return
	}
	mode, err := domain.ParseInputMode(req.InputType)
	if err != nil {
		_ = c.Error(domain.NewProvisionError(domain.ProvisionErrInvalidInput, "input_type must be rtmp or whip", err))
		return
	}

	creds, err := h.provisioner.Provision(c.Request.Context(), b, mode)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, creds)
}

// GetStreamKeys returns the caller's current credentials and live flag.
func (h *IngressHandler) GetStreamKeys(c *gin.Context) {
	b, ok := middleware.BroadcasterFromContext(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	keys, err := h.streamKeys.GetStreamKeys(c.Request.Context(), b.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, keys)
}
