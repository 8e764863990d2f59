package repository

import (
	"context"
	"database/sql"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c *model.MerchantCategory) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CatalogRepository) ListCategories(ctx context.Context, merchantID int64) ([]*model.MerchantCategory, error) {
	var items []*model.MerchantCategory
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *CatalogRepository) MaxCategorySortOrder(ctx context.Context, merchantID int64) (int, error) {
	var last sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&model.MerchantCategory{}).
		Where("merchant_id = ?", merchantID).
		Select("MAX(sort_order)").
		Row().
		Scan(&last)
	if err != nil || !last.Valid {
		return -1, err
	}
	return int(last.Int64), nil
}

// ReorderCategories gives each listed category its index as sort order. Every
// id must belong to the merchant or nothing changes.
func (r *CatalogRepository) ReorderCategories(ctx context.Context, merchantID int64, ids []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Model(&model.MerchantCategory{}).
				Where("id = ? AND merchant_id = ?", id, merchantID).
				Update("sort_order", i)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrCategoryNotFound
			}
		}
		return nil
	})
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *CatalogRepository) ListProducts(ctx context.Context, merchantID int64) ([]*model.Product, error) {
	var items []*model.Product
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *CatalogRepository) CountProducts(ctx context.Context, merchantID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("merchant_id = ?", merchantID).
		Count(&count).Error
	return count, err
}

func (r *CatalogRepository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CatalogRepository) GetCoupon(ctx context.Context, merchantID, id int64) (*model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Where("id = ? AND merchant_id = ?", id, merchantID).First(&c).Error
	if err != nil {
		return nil, notFound(err, ErrCouponNotFound)
	}
	return &c, nil
}

func (r *CatalogRepository) ListCoupons(ctx context.Context, merchantID int64) ([]*model.Coupon, error) {
	var items []*model.Coupon
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *CatalogRepository) CouponTypes(ctx context.Context, merchantID int64) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("merchant_id = ?", merchantID).
		Distinct("coupon_type").
		Pluck("coupon_type", &types).Error
	return types, err
}
