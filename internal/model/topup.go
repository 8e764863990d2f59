package model

import (
	"time"
)

const (
	TopUpStatusCreated   = "CREATED"
	TopUpStatusVerifying = "VERIFYING"
	TopUpStatusPaid      = "PAID"
	TopUpStatusFailed    = "FAILED"
	TopUpStatusClosed    = "CLOSED"
	TopUpStatusCancelled = "CANCELLED"
)

var ValidTopUpTransitions = map[string][]string{
	TopUpStatusCreated:   {TopUpStatusVerifying, TopUpStatusClosed, TopUpStatusCancelled},
	TopUpStatusVerifying: {TopUpStatusPaid, TopUpStatusFailed, TopUpStatusCreated},
}

func CanTopUpTransition(currentStatus, targetStatus string) bool {
	for _, s := range ValidTopUpTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// TopUpOrder is a wallet recharge waiting for its payment slip to be verified.
// The wallet is only credited once the order reaches PAID.
type TopUpOrder struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`
	MerchantID    int64      `gorm:"index;not null" json:"merchant_id"`
	Amount        int64      `gorm:"not null" json:"amount"`
	Status        string     `gorm:"type:varchar(20);index;not null" json:"status"`
	SlipRef       string     `gorm:"type:varchar(128)" json:"slip_ref"`
	FailReason    string     `gorm:"type:varchar(256)" json:"fail_reason,omitempty"`
	TransactionID *int64     `json:"transaction_id,omitempty"`
	ExpiredAt     time.Time  `gorm:"not null;index" json:"expired_at"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TopUpOrder) TableName() string {
	return "topup_order"
}
