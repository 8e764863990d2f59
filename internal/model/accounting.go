package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	EntryKindIncome  = "income"
	EntryKindExpense = "expense"
)

const (
	GroupByDay      = "day"
	GroupByCategory = "category"
	GroupBySource   = "source"
)

// DateLayout is the format of AccountEntry.OccurredOn.
const DateLayout = "2006-01-02"

// AccountEntry is a quick bookkeeping line kept by a merchant. It never
// touches the wallet ledger.
type AccountEntry struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID int64          `gorm:"index:idx_entry_merchant_day,priority:1;not null" json:"merchant_id"`
	Kind       string         `gorm:"type:varchar(16);not null" json:"kind"`
	Category   string         `gorm:"type:varchar(64)" json:"category"`
	Source     string         `gorm:"type:varchar(64)" json:"source"`
	Amount     int64          `gorm:"not null" json:"amount"`
	OccurredOn string         `gorm:"type:varchar(10);index:idx_entry_merchant_day,priority:2;not null" json:"occurred_on"`
	Note       string         `gorm:"type:varchar(512)" json:"note"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AccountEntry) TableName() string {
	return "account_transactions"
}
