package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonerrors "github.com/northwear/storefront/common/errors"
)

type createPaymentRequest struct {
	OrderID string          `json:"orderId" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Email   string          `json:"email" binding:"required,email"`
}

func (s *Server) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "wrong data"})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid order id"})
		return
	}

	url, err := s.payments.CreateInvoice(c.Request.Context(), orderID, req.Amount, req.Email)
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paymentUrl": url})
}

// paymentWebhook always answers ok: webhook failures are logged and left
// to the provider's retries, never bounced back as errors that could stop
// the retry loop.
func (s *Server) paymentWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		s.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if err := s.payments.HandleWebhook(c.Request.Context(), raw); err != nil {
		s.logger.Warn("webhook not applied", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
