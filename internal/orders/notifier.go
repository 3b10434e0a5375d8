package orders

import (
	"context"

	"go.uber.org/zap"

	"github.com/northwear/storefront/pkg/models"
)

// Notifier receives admin-facing events. The production deployment backs
// this with the Telegram console; that integration lives outside this
// repository, so the default implementation just logs.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	ServerError(ctx context.Context, message, origin string)
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that writes events to the log.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notify")}
}

func (n *logNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	n.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.String("payment_method", order.PaymentMethod))
}

func (n *logNotifier) ServerError(ctx context.Context, message, origin string) {
	n.logger.Error("server error reported",
		zap.String("message", message),
		zap.String("origin", origin))
}
