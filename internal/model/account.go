package model

import (
	"fmt"
	"time"
)

const (
	OwnerTypeMerchant = "merchant"
	OwnerTypeUser     = "user"
)

// Owner identifies whose wallet a ledger row belongs to: a merchant wallet
// or a user's referral wallet.
type Owner struct {
	Type string `json:"owner_type"`
	ID   int64  `json:"owner_id"`
}

func MerchantOwner(merchantID int64) Owner {
	return Owner{Type: OwnerTypeMerchant, ID: merchantID}
}

func UserOwner(userID int64) Owner {
	return Owner{Type: OwnerTypeUser, ID: userID}
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%d", o.Type, o.ID)
}

// Account is the materialised balance of one owner. It exists so a debit can be
// applied as a single conditional update; reads of the balance go through the
// ledger snapshot.
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerType string    `gorm:"type:varchar(16);uniqueIndex:uk_account_owner;not null" json:"owner_type"`
	OwnerID   int64     `gorm:"uniqueIndex:uk_account_owner;not null" json:"owner_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "wallet_account"
}

func (a *Account) Owner() Owner {
	return Owner{Type: a.OwnerType, ID: a.OwnerID}
}
