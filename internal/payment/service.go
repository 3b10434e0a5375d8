package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/pkg/metrics"
	"github.com/northwear/storefront/pkg/models"
)

// InvoiceCreator is the provider call the service depends on.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, email string) (string, error)
}

// OrderReconciler is the slice of the order service the reconciler needs.
type OrderReconciler interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
}

// Service owns invoice creation and webhook reconciliation.
type Service struct {
	db     *gorm.DB
	client InvoiceCreator
	orders OrderReconciler
	logger *zap.Logger
}

// NewService creates the payment reconciler.
func NewService(db *gorm.DB, client InvoiceCreator, orders OrderReconciler, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		client: client,
		orders: orders,
		logger: logger.Named("payment"),
	}
}

// CreateInvoice verifies the order exists, asks the provider for a payment
// page, and persists the invoice. Provider failures surface synchronously;
// the order stays in processing and invoice creation is safe to retry.
func (s *Service) CreateInvoice(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, email string) (string, error) {
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return "", err
	}

	url, err := s.client.CreateInvoice(ctx, orderID.String(), amount, email)
	if err != nil {
		return "", err
	}

	invoice := &models.PaymentInvoice{
		OrderID:        orderID,
		Amount:         amount,
		ProviderURL:    url,
		ProviderStatus: "created",
	}
	if err := s.db.WithContext(ctx).Create(invoice).Error; err != nil {
		// The provider page exists either way; log with enough context
		// for manual reconciliation and still hand the URL out.
		s.logger.Error("failed to persist invoice",
			zap.String("order_id", orderID.String()),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}

	s.logger.Info("invoice created",
		zap.String("order_id", orderID.String()),
		zap.String("amount", amount.String()))

	return url, nil
}

// HandleWebhook records the raw payload for audit, then applies a "paid"
// event to the matching order. Applying the same event twice is a no-op.
// A returned error is a webhook anomaly for the caller to log; the HTTP
// layer still answers ok so the provider's retries remain the recovery
// mechanism.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte) error {
	record := &models.WebhookRecord{RawPayload: string(raw)}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.logger.Error("failed to persist webhook payload", zap.Error(err))
	}

	event, err := ParseWebhook(raw)
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues("anomaly").Inc()
		s.updateRecord(ctx, record, "", "unrecognized")
		return err
	}

	s.updateRecord(ctx, record, event.OrderID, event.Status)

	if !event.Paid {
		s.logger.Info("ignoring non-paid webhook",
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status))
		metrics.WebhooksProcessed.WithLabelValues("ignored").Inc()
		return nil
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues("anomaly").Inc()
		return &commonerrors.WebhookAnomalyError{Reason: fmt.Sprintf("malformed order id %q", event.OrderID)}
	}

	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		metrics.WebhooksProcessed.WithLabelValues("anomaly").Inc()
		if errors.Is(err, commonerrors.ErrOrderNotFound) {
			return &commonerrors.WebhookAnomalyError{Reason: fmt.Sprintf("no order with id %s", orderID)}
		}
		return &commonerrors.WebhookAnomalyError{Reason: err.Error()}
	}

	if err := s.db.WithContext(ctx).
		Model(&models.PaymentInvoice{}).
		Where("order_id = ?", orderID).
		Update("provider_status", "paid").Error; err != nil {
		s.logger.Error("failed to update invoice status",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}

	metrics.WebhooksProcessed.WithLabelValues("paid").Inc()
	s.logger.Info("order payment confirmed", zap.String("order_id", orderID.String()))
	return nil
}

func (s *Service) updateRecord(ctx context.Context, record *models.WebhookRecord, orderID, status string) {
	if record.ID == 0 {
		return
	}
	if err := s.db.WithContext(ctx).Model(record).
		Updates(map[string]interface{}{"order_id": orderID, "status": status}).Error; err != nil {
		s.logger.Warn("failed to annotate webhook record", zap.Error(err))
	}
}
