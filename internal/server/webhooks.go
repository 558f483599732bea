package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	headerSignature = "X-Gateway-Signature"
	headerEventID   = "X-Gateway-Event-Id"
)

// HandleGatewayWebhook ingests one gateway delivery. The raw body is read
// before any parsing because the signature covers the exact bytes.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ack, err := s.webhookSvc.Ingest(
		c.Request.Context(),
		body,
		c.GetHeader(headerSignature),
		c.GetHeader(headerEventID),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}
