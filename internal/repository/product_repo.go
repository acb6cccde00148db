package repository

import (
	"context"
	"errors"

	"github.com/mira/outfitadvisor/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository handles catalog product records.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID retrieves a product by its catalog ID. A missing product is an
// expected condition and is reported as (nil, false, nil), not an error.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, bool, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &product, true, nil
}

// Upsert creates or updates a product record keyed by its catalog ID.
func (r *ProductRepository) Upsert(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(product).Error
}

// ExistsByID checks whether a product with the given ID is already stored.
func (r *ProductRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByCategory retrieves products by category with pagination; an empty
// category matches all.
func (r *ProductRepository) ListByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Product, error) {
	var products []domain.Product
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Count returns the total number of catalog products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
