package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrBalanceNotEnough     = errors.New("balance not enough")
	ErrOptimisticLock       = errors.New("optimistic lock conflict, retry")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrTopUpNotFound        = errors.New("top-up order not found")
	ErrMerchantNotFound     = errors.New("merchant not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrEntryNotFound        = errors.New("account entry not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrStatusConflict       = errors.New("status changed concurrently")
	ErrStatusInvalid        = errors.New("status transition not allowed")
)

// conn returns tx when the caller runs inside a transaction, db otherwise.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
