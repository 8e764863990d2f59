package service

import (
	"context"
	"fmt"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/logger"

	"gorm.io/gorm"
)

// ReferralService pays the one-time commission owed to the user who referred
// a merchant.
type ReferralService struct {
	db           *gorm.DB
	cfg          *config.Config
	logger       *logger.Logger
	ledger       *LedgerService
	merchantRepo *repository.MerchantRepository
	invoiceRepo  *repository.InvoiceRepository
	referralRepo *repository.ReferralRepository
}

func NewReferralService(db *gorm.DB, cfg *config.Config, log *logger.Logger, ledger *LedgerService) *ReferralService {
	return &ReferralService{
		db:           db,
		cfg:          cfg,
		logger:       log,
		ledger:       ledger,
		merchantRepo: repository.NewMerchantRepository(db),
		invoiceRepo:  repository.NewInvoiceRepository(db),
		referralRepo: repository.NewReferralRepository(db),
	}
}

// GrantFirstSubscriptionReward credits the referrer when the merchant has just
// paid its first invoice. It returns nil without error when no reward is due.
func (s *ReferralService) GrantFirstSubscriptionReward(ctx context.Context, merchantID int64, planID string) (*model.ReferralReward, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant.ReferredByUserID == nil {
		return nil, nil
	}

	amount := s.cfg.Business.ReferralRewards[planID]
	if amount <= 0 {
		return nil, nil
	}

	paid, err := s.invoiceRepo.CountPaidByMerchant(ctx, nil, merchantID)
	if err != nil {
		return nil, err
	}
	if paid != 1 {
		return nil, nil
	}

	referrer := model.UserOwner(*merchant.ReferredByUserID)
	var reward *model.ReferralReward
	err = s.ledger.WithLock(ctx, referrer, func() error {
		existing, err := s.referralRepo.GetByMerchantID(ctx, nil, merchantID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			trans, err := s.ledger.PostTx(ctx, tx, PostRequest{
				Owner:       referrer,
				Amount:      amount,
				Type:        model.TransactionTypeCommission,
				Reference:   fmt.Sprintf("referral:%d", merchantID),
				Description: fmt.Sprintf("referral reward merchant %d plan %s", merchantID, planID),
			})
			if err != nil {
				return err
			}
			reward = &model.ReferralReward{
				MerchantID:     merchantID,
				ReferrerUserID: referrer.ID,
				PlanID:         planID,
				Amount:         amount,
				TransactionID:  trans.ID,
			}
			return s.referralRepo.Create(ctx, tx, reward)
		})
	})
	if err != nil {
		return nil, err
	}
	if reward != nil {
		s.logger.Infow("referral reward granted", "merchant_id", merchantID, "referrer", referrer.ID, "amount", amount)
	}
	return reward, nil
}
