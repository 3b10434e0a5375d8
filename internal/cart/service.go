// Package cart owns the session-scoped cart state. The Service here is the
// single writer: every mutation is serialized per session, applied to the
// injected Store, and fanned out to the session's live connections before
// the call returns. Stock is not reserved in the cart path; the order
// pipeline owns authoritative stock movement.
package cart

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/pkg/metrics"
	"github.com/northwear/storefront/pkg/models"
)

// Broadcaster pushes a cart snapshot to every live connection of a session.
type Broadcaster interface {
	BroadcastCart(sessionID string, lines []models.CartLine)
}

// ProductReader resolves products for cart validation.
type ProductReader interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
}

// Service is the cart mutator. All writes to the Store go through it.
type Service struct {
	store       Store
	products    ProductReader
	broadcaster Broadcaster
	logger      *zap.Logger

	// One lock per session serializes that session's mutations without
	// cross-session contention. Entries are never evicted, matching the
	// lifetime of the carts themselves.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates the cart mutator.
func NewService(store Store, products ProductReader, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		products:    products,
		broadcaster: broadcaster,
		logger:      logger.Named("cart"),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[sessionID] = mu
	}
	return mu
}

// GetCart returns the current cart snapshot. Never fails; a session
// without a cart gets an empty one.
func (s *Service) GetCart(sessionID string) []models.CartLine {
	return s.store.Get(sessionID)
}

// AddLine validates the product and size, then merges the quantity into an
// existing matching line or appends a new one. The post-mutation snapshot
// is broadcast before returning.
func (s *Service) AddLine(ctx context.Context, sessionID string, productID uint, size string, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, &commonerrors.ValidationError{Detail: fmt.Sprintf("invalid quantity %d", quantity)}
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, ok := product.Stock[size]; !ok {
		return nil, commonerrors.ErrSizeUnavailable
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	lines := s.store.Get(sessionID)
	merged := false
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].Size == size {
			lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, models.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Size:      size,
			Quantity:  quantity,
			Images:    product.Images,
		})
	}
	s.store.Put(sessionID, lines)
	s.broadcast(sessionID, lines)
	metrics.CartMutations.WithLabelValues("add").Inc()

	s.logger.Debug("cart line added",
		zap.String("session_id", sessionID),
		zap.Uint("product_id", productID),
		zap.String("size", size),
		zap.Int("quantity", quantity))

	return product, nil
}

// RemoveLine decrements the matching line by quantity, deleting it when it
// reaches zero. Removing a line that does not exist is a no-op success.
func (s *Service) RemoveLine(ctx context.Context, sessionID string, productID uint, size string, quantity int) error {
	if quantity < 1 {
		return &commonerrors.ValidationError{Detail: fmt.Sprintf("invalid quantity %d", quantity)}
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	lines := s.store.Get(sessionID)
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].Size == size {
			lines[i].Quantity -= quantity
			if lines[i].Quantity <= 0 {
				lines = append(lines[:i], lines[i+1:]...)
			}
			break
		}
	}
	s.store.Put(sessionID, lines)
	s.broadcast(sessionID, lines)
	metrics.CartMutations.WithLabelValues("remove").Inc()

	return nil
}

// Clear replaces the session's cart with an empty one.
func (s *Service) Clear(ctx context.Context, sessionID string) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	s.store.Put(sessionID, nil)
	s.broadcast(sessionID, nil)
	metrics.CartMutations.WithLabelValues("clear").Inc()
}

func (s *Service) broadcast(sessionID string, lines []models.CartLine) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastCart(sessionID, lines)
}
