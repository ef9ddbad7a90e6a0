package http

import (
	stderrors "errors"
	"io"
	"net/http"

	"streamgate/internal/core/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxWebhookBody = 1 << 20

var _ ports.WebhookHTTPHandler = (*WebhookHandler)(nil)

type WebhookHandler struct {
	synchronizer ports.WebhookSynchronizer
	maxBodyBytes int64
	logger       *zap.SugaredLogger
}

func NewWebhookHandler(synchronizer ports.WebhookSynchronizer, maxBodyBytes int64, logger *zap.SugaredLogger) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxWebhookBody
	}
	return &WebhookHandler{
		synchronizer: synchronizer,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// SetupRoutes registers the provider callback. It must stay outside the
// per-IP rate limiter: every delivery comes from the provider's addresses
// and a dropped event leaves the live flag stale.
func (h *WebhookHandler) SetupRoutes(router gin.IRouter) {
	router.POST("/api/v1/webhooks/livekit", h.ReceiveLiveKit)
}

// ReceiveLiveKit answers with a bare status. The signature covers the raw
// body, so it is read unparsed.
func (h *WebhookHandler) ReceiveLiveKit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.logger.Warnw("webhook body too large", "limit", h.maxBodyBytes)
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warnw("failed to read webhook body", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	status := h.synchronizer.Handle(c.Request.Context(), body, c.GetHeader("Authorization"))
	c.Status(status)
}
