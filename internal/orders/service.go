// Package orders turns a cart snapshot into a durable order. Stock
// validation, the order insert, and the stock decrement run inside one
// database transaction with the product rows locked, so concurrent
// checkouts against the same dwindling stock cannot both succeed and a
// failure partway leaves nothing behind.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/pkg/metrics"
	"github.com/northwear/storefront/pkg/models"
)

// CartManager is the slice of the cart service the orchestrator needs:
// a snapshot read before the transaction and a clear after commit.
type CartManager interface {
	GetCart(sessionID string) []models.CartLine
	Clear(ctx context.Context, sessionID string)
}

// CacheInvalidator drops cached catalog views after stock moves.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// CreateOrderInput carries the delivery and contact details for checkout.
type CreateOrderInput struct {
	DeliveryType  string
	FullName      string
	Email         string
	Phone         string
	City          string
	Address       string
	Comment       string
	PaymentMethod string
}

// Service orchestrates order creation and status transitions.
type Service struct {
	db       *gorm.DB
	carts    CartManager
	cache    CacheInvalidator
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates the order orchestrator. cache and notifier may be nil.
func NewService(db *gorm.DB, carts CartManager, cache CacheInvalidator, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		carts:    carts,
		cache:    cache,
		notifier: notifier,
		logger:   logger.Named("orders"),
	}
}

// CreateOrder validates the session's cart against current stock, persists
// the order with its line-item snapshot, decrements stock, and clears the
// cart. The order row and the decrement commit or roll back together.
func (s *Service) CreateOrder(ctx context.Context, sessionID string, in CreateOrderInput) (*models.Order, error) {
	snapshot := s.carts.GetCart(sessionID)
	if len(snapshot) == 0 {
		return nil, commonerrors.ErrEmptyCart
	}

	total := decimal.Zero
	for _, line := range snapshot {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := &models.Order{
		ID:            uuid.New(),
		SessionID:     sessionID,
		TotalAmount:   total,
		Status:        models.OrderStatusProcessing,
		DeliveryType:  in.DeliveryType,
		FullName:      in.FullName,
		Email:         in.Email,
		Phone:         in.Phone,
		City:          in.City,
		Address:       in.Address,
		Comment:       in.Comment,
		PaymentMethod: in.PaymentMethod,
	}
	for _, line := range snapshot {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.lockProducts(tx, snapshot)
		if err != nil {
			return err
		}

		// Validate every line before touching anything.
		for _, line := range snapshot {
			product := products[line.ProductID]
			available, ok := product.Stock[line.Size]
			if !ok || available < line.Quantity {
				return &commonerrors.InsufficientStockError{
					ProductID: line.ProductID,
					Name:      line.Name,
					Size:      line.Size,
					Available: available,
					Requested: line.Quantity,
				}
			}
		}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to persist order: %w", err)
		}

		for _, line := range snapshot {
			product := products[line.ProductID]
			product.Stock[line.Size] -= line.Quantity
		}
		for _, product := range products {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", product.ID).
				Update("stock", product.Stock).Error; err != nil {
				return fmt.Errorf("failed to decrement stock for product %d: %w", product.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// The cart is cleared only after the transaction committed: a failed
	// order leaves the cart intact for retry.
	s.carts.Clear(ctx, sessionID)
	if s.cache != nil {
		s.cache.InvalidateCache(ctx)
	}
	if s.notifier != nil {
		s.notifier.OrderCreated(ctx, order)
	}
	metrics.OrdersCreated.WithLabelValues(in.PaymentMethod).Inc()

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("session_id", sessionID),
		zap.String("total_amount", total.String()),
		zap.Int("lines", len(snapshot)))

	return order, nil
}

// lockProducts loads every product referenced by the snapshot in a
// deterministic order, taking row locks on PostgreSQL so concurrent
// checkouts serialize per product.
func (s *Service) lockProducts(tx *gorm.DB, snapshot []models.CartLine) (map[uint]*models.Product, error) {
	idSet := make(map[uint]struct{}, len(snapshot))
	for _, line := range snapshot {
		idSet[line.ProductID] = struct{}{}
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var product models.Product
		if err := q.First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, commonerrors.ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
		}
		if product.Stock == nil {
			product.Stock = models.SizeStock{}
		}
		products[id] = &product
	}
	return products, nil
}

// GetOrder returns one order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commonerrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// ListOrders returns the session's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, sessionID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// MarkPaid moves an order to paid. Idempotent: an order at or past paid
// stays where it is. A cancelled order is never revived.
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var order models.Order
		if err := q.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commonerrors.ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		switch order.Status {
		case models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusDelivered:
			// Already paid; nothing to apply again.
			return nil
		case models.OrderStatusCancelled:
			return fmt.Errorf("order %s is cancelled and cannot be marked paid", orderID)
		}

		if err := tx.Model(&order).Update("status", models.OrderStatusPaid).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		s.logger.Info("order marked paid", zap.String("order_id", orderID.String()))
		return nil
	})
}
