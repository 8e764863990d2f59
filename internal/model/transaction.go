package model

import (
	"time"
)

const (
	TransactionTypeTopUp        = "top_up"
	TransactionTypeCommission   = "commission"
	TransactionTypeWithdraw     = "withdraw"   // merchant wallet payout
	TransactionTypeBonus        = "bonus"
	TransactionTypeWithdrawal   = "withdrawal" // referral balance payout
	TransactionTypeSubscription = "subscription"
	TransactionTypeRefund       = "refund"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is one ledger entry.
//
// Rows are append-only. BalanceAfter is the snapshot taken at insert time and is
// what balance reads return; nothing ever re-sums the ledger. A reversal is a new
// compensating row, never an edit. Rows written before the status column existed
// carry an empty status and count as completed.
type Transaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	OwnerType     string    `gorm:"type:varchar(16);index:idx_txn_owner_created,priority:1;not null" json:"owner_type"`
	OwnerID       int64     `gorm:"index:idx_txn_owner_created,priority:2;not null" json:"owner_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // positive credits, negative debits
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Status        string    `gorm:"type:varchar(16);index" json:"status"`
	Type          string    `gorm:"type:varchar(20);index;not null" json:"type"`
	Reference     *string   `gorm:"type:varchar(128);uniqueIndex" json:"reference,omitempty"`
	Description   string    `gorm:"type:varchar(256)" json:"description"`
	CreatedAt     time.Time `gorm:"index:idx_txn_owner_created,priority:3" json:"created_at"`
}

func (Transaction) TableName() string {
	return "wallet_transaction"
}

func (t *Transaction) Owner() Owner {
	return Owner{Type: t.OwnerType, ID: t.OwnerID}
}

// IsSettled reports whether the row counts towards the balance snapshot.
func (t *Transaction) IsSettled() bool {
	return t.Status == TransactionStatusCompleted || t.Status == ""
}
