package service

import (
	"context"
	"fmt"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/idgen"
	"couponhub/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Notifier delivers a push notification to users.
type Notifier interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

type WithdrawalService struct {
	db             *gorm.DB
	cfg            *config.Config
	logger         *logger.Logger
	ledger         *LedgerService
	notifier       Notifier
	withdrawalRepo *repository.WithdrawalRepository
	merchantRepo   *repository.MerchantRepository
	outboxRepo     *repository.OutboxRepository
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config, log *logger.Logger, ledger *LedgerService, notifier Notifier) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		cfg:            cfg,
		logger:         log,
		ledger:         ledger,
		notifier:       notifier,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		merchantRepo:   repository.NewMerchantRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

// CalculateFee returns max(amount × rate, minimum fee), rounded half-up to
// whole satang, and the amount left after it.
func (s *WithdrawalService) CalculateFee(amount int64) (fee, net int64) {
	pct := decimal.NewFromInt(amount).Mul(s.cfg.Business.FeeRate()).Round(0).IntPart()
	fee = pct
	if fee < s.cfg.Business.WithdrawMinFee {
		fee = s.cfg.Business.WithdrawMinFee
	}
	return fee, amount - fee
}

type WithdrawalEvent struct {
	WithdrawalNo string `json:"withdrawal_no"`
	Kind         string `json:"kind"`
	OwnerType    string `json:"owner_type"`
	OwnerID      int64  `json:"owner_id"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	At           string `json:"at"`
}

// RequestMerchantWithdrawal pays out the merchant wallet to the bank account
// on the merchant's KYC record.
func (s *WithdrawalService) RequestMerchantWithdrawal(ctx context.Context, merchantID, amount int64) (*model.WithdrawalRequest, error) {
	if err := s.validateAmount(amount, s.cfg.Business.MerchantMinWithdraw); err != nil {
		return nil, err
	}
	merchant, err := s.merchantRepo.GetByID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}
	if !merchant.Bank.Complete() {
		return nil, ErrKYCIncomplete
	}
	return s.request(ctx, model.WithdrawalKindMerchant, model.MerchantOwner(merchantID), amount, merchant.Bank, model.TransactionTypeWithdraw)
}

// UpdateBankAccount stores the payout account used by merchant withdrawals.
func (s *WithdrawalService) UpdateBankAccount(ctx context.Context, merchantID int64, bank model.BankDetails) (*model.Merchant, error) {
	if !bank.Complete() {
		return nil, ErrKYCIncomplete
	}
	if err := s.merchantRepo.UpdateBank(ctx, merchantID, bank); err != nil {
		return nil, err
	}
	return s.merchantRepo.GetByID(ctx, nil, merchantID)
}

// RequestReferralWithdrawal pays out a user's referral balance to the bank
// account given in the request.
func (s *WithdrawalService) RequestReferralWithdrawal(ctx context.Context, userID, amount int64, bank model.BankDetails) (*model.WithdrawalRequest, error) {
	if err := s.validateAmount(amount, s.cfg.Business.ReferralMinWithdraw); err != nil {
		return nil, err
	}
	if !bank.Complete() {
		return nil, ErrKYCIncomplete
	}
	return s.request(ctx, model.WithdrawalKindReferral, model.UserOwner(userID), amount, bank, model.TransactionTypeWithdrawal)
}

func (s *WithdrawalService) validateAmount(amount, minimum int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount < minimum {
		return fmt.Errorf("%w: minimum is %d", ErrBelowMinimum, minimum)
	}
	if _, net := s.CalculateFee(amount); net <= 0 {
		return fmt.Errorf("%w: amount does not cover the fee", ErrBelowMinimum)
	}
	return nil
}

// request reserves the amount with a completed debit and records the pending
// request in the same transaction.
func (s *WithdrawalService) request(ctx context.Context, kind string, owner model.Owner, amount int64, bank model.BankDetails, debitType string) (*model.WithdrawalRequest, error) {
	fee, net := s.CalculateFee(amount)
	w := &model.WithdrawalRequest{
		WithdrawalNo: idgen.GenerateWithdrawalNo(),
		Kind:         kind,
		OwnerType:    owner.Type,
		OwnerID:      owner.ID,
		Amount:       amount,
		Fee:          fee,
		NetAmount:    net,
		Bank:         bank,
		Status:       model.WithdrawalStatusPending,
	}

	err := s.ledger.WithLock(ctx, owner, func() error {
		open, err := s.withdrawalRepo.HasOpen(ctx, nil, owner)
		if err != nil {
			return err
		}
		if open {
			return ErrWithdrawalInProgress
		}
		if _, err := s.ledger.RequireBalance(ctx, nil, owner, amount); err != nil {
			return err
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.withdrawalRepo.Create(ctx, tx, w); err != nil {
				return fmt.Errorf("create withdrawal: %w", err)
			}
			trans, err := s.ledger.PostTx(ctx, tx, PostRequest{
				Owner:       owner,
				Amount:      -amount,
				Type:        debitType,
				Reference:   "withdrawal:" + w.WithdrawalNo,
				Description: "withdrawal " + w.WithdrawalNo,
			})
			if err != nil {
				return err
			}
			w.DebitTransactionID = &trans.ID
			if err := tx.WithContext(ctx).Model(w).Update("debit_transaction_id", trans.ID).Error; err != nil {
				return fmt.Errorf("link debit: %w", err)
			}
			return s.writeEvent(ctx, tx, w, time.Now())
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("withdrawal requested", "no", w.WithdrawalNo, "kind", kind, "owner", owner.String(), "amount", amount, "fee", fee)
	return w, nil
}

type UpdateWithdrawalRequest struct {
	Status          string `json:"status" binding:"required"`
	AdminNote       string `json:"admin_note"`
	RejectionReason string `json:"rejection_reason"`
}

// UpdateStatus applies an admin decision. Rejecting returns the reserved
// amount to the wallet with a refund credit in the same transaction.
func (s *WithdrawalService) UpdateStatus(ctx context.Context, kind string, id int64, req UpdateWithdrawalRequest) (*model.WithdrawalRequest, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, nil, kind, id)
	if err != nil {
		return nil, err
	}
	if !model.CanWithdrawalTransition(w.Status, req.Status) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	extra := map[string]interface{}{}
	if req.AdminNote != "" {
		extra["admin_note"] = req.AdminNote
	}
	if req.Status == model.WithdrawalStatusCompleted || req.Status == model.WithdrawalStatusRejected {
		extra["processed_at"] = now
	}
	if req.Status == model.WithdrawalStatusRejected {
		extra["rejection_reason"] = req.RejectionReason
	}

	from := w.Status
	apply := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.withdrawalRepo.UpdateStatus(ctx, tx, w.ID, from, req.Status, extra); err != nil {
				return err
			}
			w.Status = req.Status

			if req.Status == model.WithdrawalStatusRejected {
				trans, err := s.ledger.PostTx(ctx, tx, PostRequest{
					Owner:       w.Owner(),
					Amount:      w.Amount,
					Type:        model.TransactionTypeRefund,
					Reference:   "withdrawal-refund:" + w.WithdrawalNo,
					Description: "refund (rejected) " + w.WithdrawalNo,
				})
				if err != nil {
					return err
				}
				w.RefundTransactionID = &trans.ID
				if err := tx.WithContext(ctx).Model(w).Update("refund_transaction_id", trans.ID).Error; err != nil {
					return fmt.Errorf("link refund: %w", err)
				}
			}
			return s.writeEvent(ctx, tx, w, now)
		})
	}

	if req.Status == model.WithdrawalStatusRejected {
		err = s.ledger.WithLock(ctx, w.Owner(), apply)
	} else {
		err = apply()
	}
	if err != nil {
		return nil, err
	}

	if req.AdminNote != "" {
		w.AdminNote = req.AdminNote
	}
	if req.Status == model.WithdrawalStatusRejected {
		w.RejectionReason = req.RejectionReason
	}
	if _, ok := extra["processed_at"]; ok {
		w.ProcessedAt = &now
	}

	s.logger.Infow("withdrawal status changed", "no", w.WithdrawalNo, "from", from, "to", req.Status)
	s.notifyOwner(ctx, w)
	return w, nil
}

// BatchProcess moves the listed pending requests to processing.
func (s *WithdrawalService) BatchProcess(ctx context.Context, kind string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, invalidParam("ids is empty")
	}
	n, err := s.withdrawalRepo.MarkProcessing(ctx, kind, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("withdrawals moved to processing", "kind", kind, "requested", len(ids), "moved", n)
	return n, nil
}

func (s *WithdrawalService) ListOwn(ctx context.Context, kind string, owner model.Owner, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return s.withdrawalRepo.List(ctx, repository.WithdrawalFilter{Kind: kind, Owner: &owner, Status: status}, page, pageSize)
}

func (s *WithdrawalService) ListAll(ctx context.Context, kind, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return s.withdrawalRepo.List(ctx, repository.WithdrawalFilter{Kind: kind, Status: status}, page, pageSize)
}

func (s *WithdrawalService) writeEvent(ctx context.Context, tx *gorm.DB, w *model.WithdrawalRequest, at time.Time) error {
	msg, err := newOutboxMessage(s.cfg.Kafka.Topic.WalletEvents, model.EventWithdrawalChanged, w.Owner().String(), WithdrawalEvent{
		WithdrawalNo: w.WithdrawalNo,
		Kind:         w.Kind,
		OwnerType:    w.OwnerType,
		OwnerID:      w.OwnerID,
		Amount:       w.Amount,
		Status:       w.Status,
		At:           at.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}

func (s *WithdrawalService) notifyOwner(ctx context.Context, w *model.WithdrawalRequest) {
	if s.notifier == nil {
		return
	}

	userID := w.OwnerID
	if w.OwnerType == model.OwnerTypeMerchant {
		merchant, err := s.merchantRepo.GetByID(ctx, nil, w.OwnerID)
		if err != nil {
			s.logger.Warnw("withdrawal notification skipped", "no", w.WithdrawalNo, "err", err)
			return
		}
		userID = merchant.OwnerUserID
	}

	_, err := s.notifier.Send(ctx, SendRequest{
		UserIDs:  []int64{userID},
		Category: CategoryWallet,
		Title:    "Withdrawal " + w.Status,
		Body:     fmt.Sprintf("Withdrawal %s of %s is now %s", w.WithdrawalNo, formatTHB(w.Amount), w.Status),
		Data:     map[string]interface{}{"withdrawal_no": w.WithdrawalNo, "status": w.Status},
	})
	if err != nil {
		s.logger.Warnw("withdrawal notification failed", "no", w.WithdrawalNo, "err", err)
	}
}

func formatTHB(satang int64) string {
	return "฿" + decimal.New(satang, -2).StringFixed(2)
}
