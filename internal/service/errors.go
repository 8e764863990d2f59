package service

import (
	"errors"
	"fmt"

	"couponhub/internal/repository"
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrBelowMinimum         = errors.New("amount is below the minimum")
	ErrKYCIncomplete        = errors.New("bank account details are incomplete")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidTransition    = errors.New("operation not allowed in the current state")
	ErrSubscriptionExists   = errors.New("subscription already exists")
	ErrPlanNotPurchasable   = errors.New("plan cannot be purchased")
	ErrWithdrawalInProgress = errors.New("a withdrawal is already in progress")
	ErrTopUpExpired         = errors.New("top-up order expired")
	ErrLimitReached         = errors.New("plan limit reached")
	ErrSystemBusy           = errors.New("system busy, retry")
	ErrInvalidParam         = errors.New("invalid parameter")

	ErrStatusConflict = repository.ErrStatusConflict
)

// InsufficientBalanceError reports how much a debit needed and how much the
// wallet held. errors.Is matches it against ErrInsufficientBalance.
type InsufficientBalanceError struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

func invalidParam(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParam, fmt.Sprintf(format, args...))
}
