// Package catalog serves product reads and owns the cached view of the
// stock ledger. Authoritative stock mutation happens inside the order
// transaction; this package only exposes snapshots.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/pkg/models"
)

const (
	productsCacheKey = "products:all"
	productsCacheTTL = 5 * time.Minute
)

// Service provides catalog reads with an optional read-through cache.
type Service struct {
	db     *gorm.DB
	cache  Cache
	logger *zap.Logger
}

// NewService creates a catalog service. cache may be nil.
func NewService(db *gorm.DB, cache Cache, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		logger: logger.Named("catalog"),
	}
}

// ListProducts returns all products ordered by id. Cache failures fall
// back to the database and are logged, never surfaced.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, productsCacheKey)
		if err == nil {
			var products []models.Product
			if err := json.Unmarshal(data, &products); err == nil {
				return products, nil
			}
			s.logger.Warn("discarding undecodable cache entry", zap.String("key", productsCacheKey))
		} else if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.Error(err))
		}
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, productsCacheKey, data, productsCacheTTL); err != nil {
				s.logger.Warn("cache set failed", zap.Error(err))
			}
		}
	}

	return products, nil
}

// GetProduct returns one product by id.
func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commonerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &product, nil
}

// InvalidateCache drops the cached product listing. Called after any
// stock mutation so clients see fresh availability.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productsCacheKey); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
