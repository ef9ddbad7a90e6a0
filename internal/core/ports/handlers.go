package ports

import (
	"github.com/gin-gonic/gin"
)

type IngressHTTPHandler interface {
	Provision(c *gin.Context)
	GetStreamKeys(c *gin.Context)
}

type WebhookHTTPHandler interface {
	ReceiveLiveKit(c *gin.Context)
}
