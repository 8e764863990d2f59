package model

import (
	"time"
)

const (
	WithdrawalKindReferral = "referral"
	WithdrawalKindMerchant = "merchant"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

// ValidWithdrawalTransitions lists the admin decisions. A payout is completed
// only after it was taken into processing.
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing, WithdrawalStatusRejected},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusRejected},
}

func CanWithdrawalTransition(from, to string) bool {
	for _, s := range ValidWithdrawalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BankDetails is the payout destination. Withdrawal rows keep a copy taken at
// request time so later profile edits do not change an open payout.
type BankDetails struct {
	BankName          string `gorm:"type:varchar(64)" json:"bank_name"`
	BankAccountNumber string `gorm:"type:varchar(32)" json:"bank_account_number"`
	BankAccountName   string `gorm:"type:varchar(128)" json:"bank_account_name"`
}

func (b BankDetails) Complete() bool {
	return b.BankName != "" && b.BankAccountNumber != "" && b.BankAccountName != ""
}

// WithdrawalRequest is a payout request against a merchant wallet or a
// referral balance. Only admin actions move it past pending.
type WithdrawalRequest struct {
	ID                  int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo        string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	Kind                string      `gorm:"type:varchar(16);index:idx_wdr_kind_status,priority:1;not null" json:"kind"`
	OwnerType           string      `gorm:"type:varchar(16);index:idx_wdr_owner,priority:1;not null" json:"owner_type"`
	OwnerID             int64       `gorm:"index:idx_wdr_owner,priority:2;not null" json:"owner_id"`
	Amount              int64       `gorm:"not null" json:"amount"`
	Fee                 int64       `gorm:"not null" json:"fee"`
	NetAmount           int64       `gorm:"not null" json:"net_amount"`
	Bank                BankDetails `gorm:"embedded" json:"bank"`
	Status              string      `gorm:"type:varchar(16);index:idx_wdr_kind_status,priority:2;not null" json:"status"`
	AdminNote           string      `gorm:"type:varchar(512)" json:"admin_note"`
	RejectionReason     string      `gorm:"type:varchar(512)" json:"rejection_reason"`
	DebitTransactionID  *int64      `json:"debit_transaction_id,omitempty"`
	RefundTransactionID *int64      `json:"refund_transaction_id,omitempty"`
	ProcessedAt         *time.Time  `json:"processed_at,omitempty"`
	CreatedAt           time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}

func (w *WithdrawalRequest) Owner() Owner {
	return Owner{Type: w.OwnerType, ID: w.OwnerID}
}
