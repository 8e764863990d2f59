package model

import (
	"time"
)

type MerchantCategory struct {
	ID         int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID int64         `gorm:"index:idx_category_merchant_sort,priority:1;not null" json:"merchant_id"`
	Name       LocalizedText `gorm:"type:text;not null" json:"name"`
	SortOrder  int           `gorm:"index:idx_category_merchant_sort,priority:2;not null;default:0" json:"sort_order"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MerchantCategory) TableName() string {
	return "merchant_category"
}

type Product struct {
	ID         int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID int64         `gorm:"index;not null" json:"merchant_id"`
	CategoryID *int64        `gorm:"index" json:"category_id,omitempty"`
	Name       LocalizedText `gorm:"type:text;not null" json:"name"`
	Price      int64         `gorm:"not null" json:"price"`
	Active     bool          `gorm:"not null" json:"active"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

// Coupon is a sellable voucher. PackageDiscount is a decimal fraction such as
// "0.1" applied when the coupon is bought as a package.
type Coupon struct {
	ID              int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID      int64         `gorm:"index:idx_coupon_merchant_type,priority:1;not null" json:"merchant_id"`
	ProductID       *int64        `gorm:"index" json:"product_id,omitempty"`
	Name            LocalizedText `gorm:"type:text;not null" json:"name"`
	CouponType      string        `gorm:"type:varchar(32);index:idx_coupon_merchant_type,priority:2;not null" json:"coupon_type"`
	UnitPrice       int64         `gorm:"not null" json:"unit_price"`
	PackageQuantity int           `gorm:"not null;default:1" json:"package_quantity"`
	PackageDiscount string        `gorm:"type:varchar(16);not null;default:'0'" json:"package_discount"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupon"
}
