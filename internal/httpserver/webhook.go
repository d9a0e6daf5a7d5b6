package httpserver

import (
	"errors"
	"io"
	"net/http"

	"marketplace-checkout/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// paymentWebhook answers 200 for handled and ignored events, 400 when the
// signature does not verify and 500 otherwise so the provider retries.
func (h *handlers) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	err = h.webhook.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, domain.ErrInvalidSignature):
		h.logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		badRequest(c, "invalid signature")
	default:
		h.fail(c, err)
	}
}
