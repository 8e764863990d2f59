package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PlanTrial   = "trial"
	PlanBasic   = "basic"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

const (
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusLocked   = "locked"
)

const (
	InvoiceStatusPending  = "pending"
	InvoiceStatusPaid     = "paid"
	InvoiceStatusFailed   = "failed"
	InvoiceStatusRefunded = "refunded"
)

// PaymentMethodWallet is the only way to pay for a plan: a paid period is
// active only once the wallet debit and the paid invoice exist.
const PaymentMethodWallet = "wallet"

// ValidSubscriptionTransitions lists every status change the state machine may make.
var ValidSubscriptionTransitions = map[string][]string{
	SubscriptionStatusTrial:    {SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled},
	SubscriptionStatusActive:   {SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusLocked},
	SubscriptionStatusPastDue:  {SubscriptionStatusActive, SubscriptionStatusLocked, SubscriptionStatusCanceled},
	SubscriptionStatusCanceled: {SubscriptionStatusActive},
	SubscriptionStatusLocked:   {SubscriptionStatusActive, SubscriptionStatusCanceled},
}

func CanSubscriptionTransition(from, to string) bool {
	for _, s := range ValidSubscriptionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PlanFeatures are the per-feature switches of a plan.
type PlanFeatures struct {
	Analytics       bool `json:"analytics"`
	Accounting      bool `json:"accounting"`
	CustomBranding  bool `json:"custom_branding"`
	PushCampaigns   bool `json:"push_campaigns"`
	PrioritySupport bool `json:"priority_support"`
}

// SubscriptionPlan is static reference data seeded by the migration.
// A zero limit means unlimited.
type SubscriptionPlan struct {
	ID             string                           `gorm:"type:varchar(32);primaryKey" json:"id"`
	Name           string                           `gorm:"type:varchar(64);not null" json:"name"`
	Price          int64                            `gorm:"not null;default:0" json:"price"`
	Features       datatypes.JSONType[PlanFeatures] `json:"features"`
	MaxProducts    int                              `gorm:"not null;default:0" json:"max_products"`
	MaxCouponTypes int                              `gorm:"not null;default:0" json:"max_coupon_types"`
	SortOrder      int                              `gorm:"not null;default:0" json:"sort_order"`
	Active         bool                             `gorm:"not null;default:true" json:"active"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plan"
}

// DefaultPlans is the catalogue written by the migration.
func DefaultPlans() []SubscriptionPlan {
	return []SubscriptionPlan{
		{
			ID: PlanTrial, Name: "Trial", Price: 0, SortOrder: 0, Active: true,
			MaxProducts: 10, MaxCouponTypes: 2,
			Features: datatypes.NewJSONType(PlanFeatures{Analytics: true}),
		},
		{
			ID: PlanBasic, Name: "Basic", Price: 29900, SortOrder: 1, Active: true,
			MaxProducts: 50, MaxCouponTypes: 5,
			Features: datatypes.NewJSONType(PlanFeatures{Analytics: true, Accounting: true}),
		},
		{
			ID: PlanPro, Name: "Pro", Price: 59900, SortOrder: 2, Active: true,
			MaxProducts: 200, MaxCouponTypes: 20,
			Features: datatypes.NewJSONType(PlanFeatures{Analytics: true, Accounting: true, CustomBranding: true, PushCampaigns: true}),
		},
		{
			ID: PlanPremium, Name: "Premium", Price: 99900, SortOrder: 3, Active: true,
			Features: datatypes.NewJSONType(PlanFeatures{Analytics: true, Accounting: true, CustomBranding: true, PushCampaigns: true, PrioritySupport: true}),
		},
	}
}

// Subscription is the single subscription row of a merchant. It is created at
// signup and never deleted; a locked row keeps the merchant's data until
// DataRetentionUntil.
type Subscription struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID         int64      `gorm:"uniqueIndex;not null" json:"merchant_id"`
	PlanID             string     `gorm:"type:varchar(32);not null" json:"plan_id"`
	Status             string     `gorm:"type:varchar(16);index;not null" json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"index" json:"current_period_end"`
	TrialEndDate       *time.Time `json:"trial_end_date"`
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`
	PastDueSince       *time.Time `json:"past_due_since"`
	LockedAt           *time.Time `json:"locked_at"`
	DataRetentionUntil *time.Time `json:"data_retention_until"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "merchant_subscription"
}

// Invoice bills one subscription period.
type Invoice struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNo      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_no"`
	SubscriptionID int64      `gorm:"index;not null" json:"subscription_id"`
	MerchantID     int64      `gorm:"index;not null" json:"merchant_id"`
	PlanID         string     `gorm:"type:varchar(32);not null" json:"plan_id"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Status         string     `gorm:"type:varchar(16);index;not null" json:"status"`
	PeriodStart    time.Time  `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time  `gorm:"not null" json:"period_end"`
	TransactionID  *int64     `json:"transaction_id,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "subscription_invoice"
}
