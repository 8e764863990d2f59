package service

import (
	"context"

	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CatalogService struct {
	logger        *logger.Logger
	repo          *repository.CatalogRepository
	subscriptions *SubscriptionService
}

func NewCatalogService(db *gorm.DB, log *logger.Logger, subscriptions *SubscriptionService) *CatalogService {
	return &CatalogService{
		logger:        log,
		repo:          repository.NewCatalogRepository(db),
		subscriptions: subscriptions,
	}
}

func (s *CatalogService) CreateCategory(ctx context.Context, merchantID int64, name model.LocalizedText) (*model.MerchantCategory, error) {
	if name.Resolve(model.DefaultLocale, "en") == "" {
		return nil, invalidParam("name is required")
	}
	last, err := s.repo.MaxCategorySortOrder(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	c := &model.MerchantCategory{MerchantID: merchantID, Name: name, SortOrder: last + 1}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, merchantID int64) ([]*model.MerchantCategory, error) {
	return s.repo.ListCategories(ctx, merchantID)
}

// ReorderCategories stores the order the client shows. Either every id is
// rewritten or none is, so a failed call leaves the previous order intact.
func (s *CatalogService) ReorderCategories(ctx context.Context, merchantID int64, ids []int64) ([]*model.MerchantCategory, error) {
	if len(ids) == 0 {
		return nil, invalidParam("ids is empty")
	}
	if len(dedupe(ids)) != len(ids) {
		return nil, invalidParam("ids contains duplicates")
	}
	if err := s.repo.ReorderCategories(ctx, merchantID, ids); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, merchantID)
}

type CreateProductRequest struct {
	CategoryID *int64              `json:"category_id"`
	Name       model.LocalizedText `json:"name"`
	Price      int64               `json:"price"`
}

func (s *CatalogService) CreateProduct(ctx context.Context, merchantID int64, req CreateProductRequest) (*model.Product, error) {
	if req.Name.Resolve(model.DefaultLocale, "en") == "" {
		return nil, invalidParam("name is required")
	}
	if req.Price < 0 {
		return nil, ErrInvalidAmount
	}
	limit, err := s.subscriptions.CheckProductLimit(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		return nil, ErrLimitReached
	}

	p := &model.Product{
		MerchantID: merchantID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Price:      req.Price,
		Active:     true,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, merchantID int64) ([]*model.Product, error) {
	return s.repo.ListProducts(ctx, merchantID)
}

type CreateCouponRequest struct {
	ProductID       *int64              `json:"product_id"`
	Name            model.LocalizedText `json:"name"`
	CouponType      string              `json:"coupon_type"`
	UnitPrice       int64               `json:"unit_price"`
	PackageQuantity int                 `json:"package_quantity"`
	PackageDiscount string              `json:"package_discount"`
}

func (s *CatalogService) CreateCoupon(ctx context.Context, merchantID int64, req CreateCouponRequest) (*model.Coupon, error) {
	if req.CouponType == "" {
		return nil, invalidParam("coupon_type is required")
	}
	if req.UnitPrice < 0 {
		return nil, ErrInvalidAmount
	}
	if req.PackageQuantity <= 0 {
		req.PackageQuantity = 1
	}
	if req.PackageDiscount == "" {
		req.PackageDiscount = "0"
	}
	discount, err := decimal.NewFromString(req.PackageDiscount)
	if err != nil || discount.IsNegative() || discount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, invalidParam("package_discount must be a fraction in [0, 1)")
	}

	limit, err := s.subscriptions.CheckCouponTypeLimit(ctx, merchantID, req.CouponType)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		return nil, ErrLimitReached
	}

	c := &model.Coupon{
		MerchantID:      merchantID,
		ProductID:       req.ProductID,
		Name:            req.Name,
		CouponType:      req.CouponType,
		UnitPrice:       req.UnitPrice,
		PackageQuantity: req.PackageQuantity,
		PackageDiscount: discount.String(),
	}
	if err := s.repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListCoupons(ctx context.Context, merchantID int64) ([]*model.Coupon, error) {
	return s.repo.ListCoupons(ctx, merchantID)
}

type Quote struct {
	CouponID  int64  `json:"coupon_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Discount  string `json:"discount"`
	Subtotal  int64  `json:"subtotal"`
	Total     int64  `json:"total"`
}

// QuotePackage prices quantity coupons. The package discount applies once the
// quantity reaches the coupon's package size.
func (s *CatalogService) QuotePackage(ctx context.Context, merchantID, couponID int64, quantity int) (*Quote, error) {
	if quantity <= 0 {
		return nil, invalidParam("quantity must be positive")
	}
	c, err := s.repo.GetCoupon(ctx, merchantID, couponID)
	if err != nil {
		return nil, err
	}
	return PriceCoupon(c, quantity), nil
}

// PriceCoupon returns round(unit_price × quantity × (1 − discount)).
func PriceCoupon(c *model.Coupon, quantity int) *Quote {
	subtotal := decimal.NewFromInt(c.UnitPrice).Mul(decimal.NewFromInt(int64(quantity)))
	discount := decimal.Zero
	if quantity >= c.PackageQuantity {
		if d, err := decimal.NewFromString(c.PackageDiscount); err == nil {
			discount = d
		}
	}
	total := subtotal.Mul(decimal.NewFromInt(1).Sub(discount)).Round(0)
	return &Quote{
		CouponID:  c.ID,
		Quantity:  quantity,
		UnitPrice: c.UnitPrice,
		Discount:  discount.String(),
		Subtotal:  subtotal.IntPart(),
		Total:     total.IntPart(),
	}
}
