package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/idgen"
	"couponhub/pkg/logger"

	"gorm.io/gorm"
)

type SubscriptionService struct {
	db          *gorm.DB
	cfg         *config.Config
	logger      *logger.Logger
	ledger      *LedgerService
	referral    *ReferralService
	subRepo     *repository.SubscriptionRepository
	planRepo    *repository.PlanRepository
	invoiceRepo *repository.InvoiceRepository
	ledgerRepo  *repository.LedgerRepository
	catalogRepo *repository.CatalogRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSubscriptionService(db *gorm.DB, cfg *config.Config, log *logger.Logger, ledger *LedgerService, referral *ReferralService) *SubscriptionService {
	return &SubscriptionService{
		db:          db,
		cfg:         cfg,
		logger:      log,
		ledger:      ledger,
		referral:    referral,
		subRepo:     repository.NewSubscriptionRepository(db),
		planRepo:    repository.NewPlanRepository(db),
		invoiceRepo: repository.NewInvoiceRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		catalogRepo: repository.NewCatalogRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type SubscribeRequest struct {
	MerchantID    int64
	PlanID        string
	PaymentMethod string
	RequestID     string
}

type SubscribeResult struct {
	Subscription *model.Subscription `json:"subscription"`
	Invoice      *model.Invoice      `json:"invoice,omitempty"`
	Transaction  *model.Transaction  `json:"transaction,omitempty"`
	Duplicate    bool                `json:"duplicate"`
}

type SubscriptionEvent struct {
	MerchantID int64  `json:"merchant_id"`
	PlanID     string `json:"plan_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	At         string `json:"at"`
}

func subscriptionDescription(planID string) string {
	return "subscription " + planID
}

func (s *SubscriptionService) ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return s.planRepo.ListActive(ctx)
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, merchantID int64) (*model.Subscription, error) {
	return s.subRepo.GetByMerchantID(ctx, nil, merchantID)
}

func (s *SubscriptionService) ListInvoices(ctx context.Context, merchantID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	return s.invoiceRepo.ListByMerchant(ctx, merchantID, page, pageSize)
}

// StartTrial creates the merchant's first subscription on the trial plan.
func (s *SubscriptionService) StartTrial(ctx context.Context, merchantID int64) (*model.Subscription, error) {
	_, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if err == nil {
		return nil, ErrSubscriptionExists
	}
	if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, err
	}

	now := time.Now()
	trialEnd := now.AddDate(0, 0, s.cfg.Business.TrialDays)
	sub := &model.Subscription{
		MerchantID:   merchantID,
		PlanID:       model.PlanTrial,
		Status:       model.SubscriptionStatusTrial,
		TrialEndDate: &trialEnd,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subRepo.Create(ctx, tx, sub); err != nil {
			return fmt.Errorf("create trial: %w", err)
		}
		return s.writeEvent(ctx, tx, sub, "", model.SubscriptionStatusTrial, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("trial started", "merchant_id", merchantID, "trial_end", trialEnd)
	return sub, nil
}

// SubscribeToPlan puts the merchant on plan for one month, charging the
// wallet. A repeated request with the same request id, or
// without one inside the duplicate window, returns the current subscription
// without charging again.
func (s *SubscriptionService) SubscribeToPlan(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentMethodWallet
	}
	if req.PaymentMethod != model.PaymentMethodWallet {
		return nil, invalidParam("unknown payment method %q", req.PaymentMethod)
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.ID == model.PlanTrial || !plan.Active {
		return nil, ErrPlanNotPurchasable
	}

	owner := model.MerchantOwner(req.MerchantID)
	charge := plan.Price > 0
	reference := ""
	if req.RequestID != "" {
		reference = "subscribe:" + req.RequestID
	}

	result := &SubscribeResult{}
	err = s.ledger.WithLock(ctx, owner, func() error {
		dup, err := s.findDuplicate(ctx, owner, plan.ID, reference)
		if err != nil {
			return err
		}
		if dup != nil {
			sub, err := s.subRepo.GetByMerchantID(ctx, nil, req.MerchantID)
			if err != nil {
				return err
			}
			result.Subscription = sub
			result.Transaction = dup
			result.Duplicate = true
			return nil
		}

		if charge {
			if _, err := s.ledger.RequireBalance(ctx, nil, owner, plan.Price); err != nil {
				return err
			}
		}

		now := time.Now()
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, from, err := s.upsertActive(ctx, tx, req.MerchantID, plan, now)
			if err != nil {
				return err
			}
			result.Subscription = sub

			if plan.Price > 0 {
				invoice, trans, err := s.billPeriod(ctx, tx, sub, plan, now, reference, true)
				if err != nil {
					return err
				}
				result.Invoice = invoice
				result.Transaction = trans
			}
			return s.writeEvent(ctx, tx, sub, from, model.SubscriptionStatusActive, now)
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Infow("duplicate subscribe ignored", "merchant_id", req.MerchantID, "plan", plan.ID)
		return result, nil
	}

	s.logger.Infow("subscribed", "merchant_id", req.MerchantID, "plan", plan.ID, "charged", charge)
	if result.Invoice != nil && result.Invoice.Status == model.InvoiceStatusPaid {
		s.grantReferral(ctx, req.MerchantID, plan.ID)
	}
	return result, nil
}

func (s *SubscriptionService) findDuplicate(ctx context.Context, owner model.Owner, planID, reference string) (*model.Transaction, error) {
	if reference != "" {
		return s.ledgerRepo.GetByReference(ctx, nil, reference)
	}
	since := time.Now().Add(-s.cfg.Business.DuplicateWindow())
	return s.ledgerRepo.FindRecent(ctx, nil, owner, model.TransactionTypeSubscription, subscriptionDescription(planID), since)
}

// upsertActive creates or rewrites the subscription row as active on plan
// with a fresh one-month period. It returns the previous status.
func (s *SubscriptionService) upsertActive(ctx context.Context, tx *gorm.DB, merchantID int64, plan *model.SubscriptionPlan, now time.Time) (*model.Subscription, string, error) {
	periodEnd := now.AddDate(0, 1, 0)

	sub, err := s.subRepo.GetByMerchantID(ctx, tx, merchantID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		sub = &model.Subscription{
			MerchantID:         merchantID,
			PlanID:             plan.ID,
			Status:             model.SubscriptionStatusActive,
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &periodEnd,
		}
		if err := s.subRepo.Create(ctx, tx, sub); err != nil {
			return nil, "", fmt.Errorf("create subscription: %w", err)
		}
		return sub, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	from := sub.Status
	if from != model.SubscriptionStatusActive && !model.CanSubscriptionTransition(from, model.SubscriptionStatusActive) {
		return nil, "", ErrInvalidTransition
	}

	sub.PlanID = plan.ID
	sub.Status = model.SubscriptionStatusActive
	sub.CurrentPeriodStart = &now
	sub.CurrentPeriodEnd = &periodEnd
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.PastDueSince = nil
	sub.LockedAt = nil
	sub.DataRetentionUntil = nil
	if err := s.subRepo.Save(ctx, tx, sub); err != nil {
		return nil, "", fmt.Errorf("save subscription: %w", err)
	}
	return sub, from, nil
}

// billPeriod creates the invoice for the subscription's current period and,
// when charge is set, debits the wallet and marks the invoice paid.
func (s *SubscriptionService) billPeriod(ctx context.Context, tx *gorm.DB, sub *model.Subscription, plan *model.SubscriptionPlan, now time.Time, reference string, charge bool) (*model.Invoice, *model.Transaction, error) {
	invoice := &model.Invoice{
		InvoiceNo:      idgen.GenerateInvoiceNo(),
		SubscriptionID: sub.ID,
		MerchantID:     sub.MerchantID,
		PlanID:         plan.ID,
		Amount:         plan.Price,
		Status:         model.InvoiceStatusPending,
		PeriodStart:    *sub.CurrentPeriodStart,
		PeriodEnd:      *sub.CurrentPeriodEnd,
	}
	if err := s.invoiceRepo.Create(ctx, tx, invoice); err != nil {
		return nil, nil, fmt.Errorf("create invoice: %w", err)
	}
	if !charge {
		return invoice, nil, nil
	}

	if reference == "" {
		reference = "invoice:" + invoice.InvoiceNo
	}
	trans, err := s.ledger.PostTx(ctx, tx, PostRequest{
		Owner:       model.MerchantOwner(sub.MerchantID),
		Amount:      -plan.Price,
		Type:        model.TransactionTypeSubscription,
		Reference:   reference,
		Description: subscriptionDescription(plan.ID),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.invoiceRepo.MarkPaid(ctx, tx, invoice.ID, trans.ID, now); err != nil {
		return nil, nil, fmt.Errorf("mark invoice paid: %w", err)
	}
	invoice.Status = model.InvoiceStatusPaid
	invoice.TransactionID = &trans.ID
	invoice.PaidAt = &now
	return invoice, trans, nil
}

// CancelSubscription stops renewal at the end of the current period.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, merchantID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubscriptionStatusLocked || sub.Status == model.SubscriptionStatusCanceled {
		return nil, ErrInvalidTransition
	}

	err = s.subRepo.UpdateFromStatus(ctx, nil, sub.ID, sub.Status, map[string]interface{}{
		"cancel_at_period_end": true,
	})
	if err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = true
	return sub, nil
}

// CancelSubscriptionImmediately ends the subscription now, whatever its state.
func (s *SubscriptionService) CancelSubscriptionImmediately(ctx context.Context, merchantID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	from := sub.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.subRepo.Updates(ctx, tx, sub.ID, map[string]interface{}{
			"status":               model.SubscriptionStatusCanceled,
			"canceled_at":          now,
			"current_period_start": nil,
			"current_period_end":   nil,
			"cancel_at_period_end": false,
		})
		if err != nil {
			return err
		}
		sub.Status = model.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.CurrentPeriodStart = nil
		sub.CurrentPeriodEnd = nil
		sub.CancelAtPeriodEnd = false
		return s.writeEvent(ctx, tx, sub, from, model.SubscriptionStatusCanceled, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("subscription canceled immediately", "merchant_id", merchantID, "from", from)
	return sub, nil
}

// ReactivateSubscription brings a locked or canceled subscription back to
// active on plan, charging the first period from the wallet.
func (s *SubscriptionService) ReactivateSubscription(ctx context.Context, merchantID int64, planID, requestID string) (*SubscribeResult, error) {
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriptionStatusLocked && sub.Status != model.SubscriptionStatusCanceled {
		return nil, ErrInvalidTransition
	}

	if planID == "" {
		planID = unlockPlanID(sub.PlanID)
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.ID == model.PlanTrial || !plan.Active {
		return nil, ErrPlanNotPurchasable
	}

	owner := model.MerchantOwner(merchantID)
	reference := ""
	if requestID != "" {
		reference = "reactivate:" + requestID
	}

	result := &SubscribeResult{}
	err = s.ledger.WithLock(ctx, owner, func() error {
		if plan.Price > 0 {
			if _, err := s.ledger.RequireBalance(ctx, nil, owner, plan.Price); err != nil {
				return err
			}
		}

		now := time.Now()
		periodEnd := now.AddDate(0, 1, 0)
		from := sub.Status
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := s.subRepo.UpdateFromStatus(ctx, tx, sub.ID, from, map[string]interface{}{
				"status":               model.SubscriptionStatusActive,
				"plan_id":              plan.ID,
				"current_period_start": now,
				"current_period_end":   periodEnd,
				"cancel_at_period_end": false,
				"canceled_at":          nil,
				"past_due_since":       nil,
				"locked_at":            nil,
				"data_retention_until": nil,
			})
			if err != nil {
				return err
			}
			sub.Status = model.SubscriptionStatusActive
			sub.PlanID = plan.ID
			sub.CurrentPeriodStart = &now
			sub.CurrentPeriodEnd = &periodEnd
			sub.CancelAtPeriodEnd = false
			sub.CanceledAt = nil
			sub.PastDueSince = nil
			sub.LockedAt = nil
			sub.DataRetentionUntil = nil
			result.Subscription = sub

			if plan.Price > 0 {
				invoice, trans, err := s.billPeriod(ctx, tx, sub, plan, now, reference, true)
				if err != nil {
					return err
				}
				result.Invoice = invoice
				result.Transaction = trans
			}
			return s.writeEvent(ctx, tx, sub, from, model.SubscriptionStatusActive, now)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("subscription reactivated", "merchant_id", merchantID, "plan", plan.ID)
	if result.Invoice != nil && result.Invoice.Status == model.InvoiceStatusPaid {
		s.grantReferral(ctx, merchantID, plan.ID)
	}
	return result, nil
}

func (s *SubscriptionService) grantReferral(ctx context.Context, merchantID int64, planID string) {
	if s.referral == nil {
		return
	}
	if _, err := s.referral.GrantFirstSubscriptionReward(ctx, merchantID, planID); err != nil {
		s.logger.Errorw("referral reward failed", "merchant_id", merchantID, "plan", planID, "err", err)
	}
}

func (s *SubscriptionService) writeEvent(ctx context.Context, tx *gorm.DB, sub *model.Subscription, from, to string, at time.Time) error {
	msg, err := newOutboxMessage(s.cfg.Kafka.Topic.WalletEvents, model.EventSubscriptionChanged,
		model.MerchantOwner(sub.MerchantID).String(), SubscriptionEvent{
			MerchantID: sub.MerchantID,
			PlanID:     sub.PlanID,
			From:       from,
			To:         to,
			At:         at.Format(time.RFC3339),
		})
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}

type SubscriptionStatus struct {
	Status         string             `json:"status"`
	PlanID         string             `json:"plan_id"`
	IsActive       bool               `json:"is_active"`
	DaysRemaining  int                `json:"days_remaining"`
	PeriodEnd      *time.Time         `json:"period_end,omitempty"`
	Features       model.PlanFeatures `json:"features"`
	MaxProducts    int                `json:"max_products"`
	MaxCouponTypes int                `json:"max_coupon_types"`
}

const statusNone = "none"

// CheckSubscriptionStatus reports whether the merchant may use paid features
// right now.
func (s *SubscriptionService) CheckSubscriptionStatus(ctx context.Context, merchantID int64) (*SubscriptionStatus, error) {
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return &SubscriptionStatus{Status: statusNone}, nil
	}
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := &SubscriptionStatus{
		Status:         sub.Status,
		PlanID:         sub.PlanID,
		Features:       plan.Features.Data(),
		MaxProducts:    plan.MaxProducts,
		MaxCouponTypes: plan.MaxCouponTypes,
	}

	var end *time.Time
	switch sub.Status {
	case model.SubscriptionStatusTrial:
		end = sub.TrialEndDate
		res.IsActive = end != nil && now.Before(*end)
	case model.SubscriptionStatusActive:
		end = sub.CurrentPeriodEnd
		res.IsActive = end == nil || now.Before(*end)
	case model.SubscriptionStatusPastDue:
		end = sub.CurrentPeriodEnd
		if sub.PastDueSince != nil {
			grace := sub.PastDueSince.AddDate(0, 0, s.cfg.Business.PastDueGraceDays)
			res.IsActive = now.Before(grace)
		}
	}
	if end != nil {
		res.PeriodEnd = end
		res.DaysRemaining = daysUntil(now, *end)
	}
	return res, nil
}

func daysUntil(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

type UnlockCheck struct {
	Status    string `json:"status"`
	PlanID    string `json:"plan_id"`
	CanUnlock bool   `json:"can_unlock"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
}

// CheckBalanceUnlock reports whether the wallet covers reactivating a locked
// or canceled subscription on its last paid plan.
func (s *SubscriptionService) CheckBalanceUnlock(ctx context.Context, merchantID int64) (*UnlockCheck, error) {
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, unlockPlanID(sub.PlanID))
	if err != nil {
		return nil, err
	}

	available, err := s.ledger.DeriveBalance(ctx, model.MerchantOwner(merchantID))
	if err != nil {
		return nil, err
	}

	lockedOut := sub.Status == model.SubscriptionStatusLocked || sub.Status == model.SubscriptionStatusCanceled
	return &UnlockCheck{
		Status:    sub.Status,
		PlanID:    plan.ID,
		CanUnlock: lockedOut && available >= plan.Price,
		Required:  plan.Price,
		Available: available,
	}, nil
}

// unlockPlanID is the plan a locked or canceled row comes back on when the
// merchant names none. A trial has no price, so it unlocks onto basic.
func unlockPlanID(planID string) string {
	if planID == model.PlanTrial {
		return model.PlanBasic
	}
	return planID
}

type LimitCheck struct {
	Allowed bool  `json:"allowed"`
	Current int64 `json:"current"`
	Limit   int   `json:"limit"`
}

// effectivePlan is the plan whose limits apply. Merchants without a
// subscription get the trial limits; a locked subscription allows nothing.
func (s *SubscriptionService) effectivePlan(ctx context.Context, merchantID int64) (*model.SubscriptionPlan, bool, error) {
	planID := model.PlanTrial
	locked := false
	sub, err := s.subRepo.GetByMerchantID(ctx, nil, merchantID)
	switch {
	case err == nil:
		planID = sub.PlanID
		locked = sub.Status == model.SubscriptionStatusLocked || sub.Status == model.SubscriptionStatusCanceled
	case !errors.Is(err, repository.ErrSubscriptionNotFound):
		return nil, false, err
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, false, err
	}
	return plan, locked, nil
}

func (s *SubscriptionService) CheckProductLimit(ctx context.Context, merchantID int64) (*LimitCheck, error) {
	plan, locked, err := s.effectivePlan(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	count, err := s.catalogRepo.CountProducts(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	return &LimitCheck{
		Allowed: !locked && (plan.MaxProducts == 0 || count < int64(plan.MaxProducts)),
		Current: count,
		Limit:   plan.MaxProducts,
	}, nil
}

// CheckCouponTypeLimit reports whether a coupon of couponType may be added.
// Adding to an existing type never counts against the limit.
func (s *SubscriptionService) CheckCouponTypeLimit(ctx context.Context, merchantID int64, couponType string) (*LimitCheck, error) {
	plan, locked, err := s.effectivePlan(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	types, err := s.catalogRepo.CouponTypes(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	known := false
	for _, t := range types {
		if t == couponType {
			known = true
			break
		}
	}
	current := int64(len(types))
	return &LimitCheck{
		Allowed: !locked && (known || plan.MaxCouponTypes == 0 || current < int64(plan.MaxCouponTypes)),
		Current: current,
		Limit:   plan.MaxCouponTypes,
	}, nil
}
