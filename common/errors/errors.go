// Package errors defines the storefront error taxonomy and its mapping to
// HTTP responses. Domain packages return these errors; the API layer calls
// Respond to translate them into structured {message} JSON with the right
// status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sentinel errors shared across the domain packages.
var (
	// ErrSessionMissing means the request carried no session cookie.
	ErrSessionMissing = errors.New("session not found")

	// ErrProductNotFound means the referenced product id is unknown.
	ErrProductNotFound = errors.New("product not found")

	// ErrSizeUnavailable means the product exists but has no such size.
	ErrSizeUnavailable = errors.New("size not available for this product")

	// ErrEmptyCart means order creation was attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrOrderNotFound means the referenced order id is unknown.
	ErrOrderNotFound = errors.New("order not found")
)

// InsufficientStockError reports an order line whose requested quantity
// exceeds current availability. Safe to retry after adjusting the cart.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Size      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %q size %s (available: %d, requested: %d)",
		e.Name, e.Size, e.Available, e.Requested)
}

// ProviderError reports a failed or unusable payment-provider response.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment provider error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("payment provider error: %s", e.Detail)
}

// WebhookAnomalyError marks a webhook payload that could not be applied:
// an unrecognized shape or an unknown order. Absorbed at the HTTP boundary.
type WebhookAnomalyError struct {
	Reason string
}

func (e *WebhookAnomalyError) Error() string {
	return "webhook anomaly: " + e.Reason
}

// ValidationError wraps a malformed-request failure from binding.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// Respond writes the HTTP response for err. Client-actionable errors keep
// their message; everything else is logged and surfaced as a generic 500.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	var stockErr *InsufficientStockError
	var providerErr *ProviderError
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": validationErr.Detail})
	case errors.Is(err, ErrSessionMissing):
		c.JSON(http.StatusBadRequest, gin.H{"message": ErrSessionMissing.Error()})
	case errors.Is(err, ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"message": ErrEmptyCart.Error()})
	case errors.Is(err, ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": ErrProductNotFound.Error()})
	case errors.Is(err, ErrSizeUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"message": ErrSizeUnavailable.Error()})
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": ErrOrderNotFound.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"message": stockErr.Error()})
	case errors.As(err, &providerErr):
		logger.Error("payment provider failure",
			zap.Int("provider_status", providerErr.StatusCode),
			zap.String("detail", providerErr.Detail))
		c.JSON(http.StatusBadGateway, gin.H{"message": "failed to create invoice"})
	default:
		logger.Error("internal error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
