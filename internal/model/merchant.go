package model

import (
	"time"
)

type Merchant struct {
	ID               int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerUserID      int64       `gorm:"index;not null" json:"owner_user_id"`
	Name             string      `gorm:"type:varchar(128);not null" json:"name"`
	ReferredByUserID *int64      `gorm:"index" json:"referred_by_user_id,omitempty"`
	Bank             BankDetails `gorm:"embedded" json:"bank"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Merchant) TableName() string {
	return "merchant"
}

// User is an end user. Users earn referral commission into their own wallet.
type User struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName    string      `gorm:"type:varchar(128)" json:"display_name"`
	TelegramChatID string      `gorm:"type:varchar(64)" json:"-"`
	Bank           BankDetails `gorm:"embedded" json:"bank"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "app_user"
}

// ReferralReward records the one-time reward paid to the user who referred a
// merchant, at most one per merchant.
type ReferralReward struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID     int64     `gorm:"uniqueIndex;not null" json:"merchant_id"`
	ReferrerUserID int64     `gorm:"index;not null" json:"referrer_user_id"`
	PlanID         string    `gorm:"type:varchar(32);not null" json:"plan_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	TransactionID  int64     `gorm:"not null" json:"transaction_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReferralReward) TableName() string {
	return "referral_reward"
}
