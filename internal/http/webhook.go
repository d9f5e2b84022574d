package http

import (
	"context"
	"io"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	mw "access-bot-backend/internal/http/middleware"
	"access-bot-backend/internal/platform/cryptopay"
)

const maxWebhookBody = 1 << 20

// WebhookSink takes a verified provider webhook body.
type WebhookSink interface {
	Accept(ctx context.Context, body []byte) error
}

// WebhookSinkFunc adapts a function to WebhookSink.
type WebhookSinkFunc func(ctx context.Context, body []byte) error

func (f WebhookSinkFunc) Accept(ctx context.Context, body []byte) error { return f(ctx, body) }

type webhookHandlers struct {
	token string
	sink  WebhookSink
}

// @Summary Crypto Pay webhook
// @Description Signed invoice update from the crypto provider
// @Tags webhooks
// @Accept json
// @Produce json
// @Param crypto-pay-api-signature header string true "HMAC-SHA256 of the body"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} mw.ErrorResponse "Malformed update"
// @Failure 401 {object} mw.ErrorResponse "Bad signature"
// @Router /webhooks/cryptopay [post]
func (h *webhookHandlers) cryptoPay(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		mw.AbortWithError(c, errors.NewValidationError("body", "unreadable"))
		return
	}
	if !cryptopay.VerifySignature(h.token, body, c.GetHeader(cryptopay.SignatureHeader)) {
		logger.Warn().Str("request_id", mw.GetRequestID(c)).Msg("Webhook signature mismatch")
		c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	if _, err := cryptopay.ParseUpdate(body); err != nil {
		mw.AbortWithError(c, errors.NewValidationError("body", err.Error()))
		return
	}
	if err := h.sink.Accept(c.Request.Context(), body); err != nil {
		mw.AbortWithError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"ok": true})
}
