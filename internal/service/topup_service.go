package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/idgen"
	"couponhub/pkg/logger"

	"gorm.io/gorm"
)

// TopUpService recharges merchant wallets from verified bank transfer slips.
type TopUpService struct {
	db         *gorm.DB
	cfg        *config.Config
	logger     *logger.Logger
	ledger     *LedgerService
	verifier   slip.Verifier
	topUpRepo  *repository.TopUpRepository
	outboxRepo *repository.OutboxRepository
}

func NewTopUpService(db *gorm.DB, cfg *config.Config, log *logger.Logger, ledger *LedgerService, verifier slip.Verifier) *TopUpService {
	return &TopUpService{
		db:         db,
		cfg:        cfg,
		logger:     log,
		ledger:     ledger,
		verifier:   verifier,
		topUpRepo:  repository.NewTopUpRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

type TopUpEvent struct {
	OrderNo    string `json:"order_no"`
	MerchantID int64  `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	PaidAt     string `json:"paid_at"`
}

// CreateTopUp opens a recharge order. The same request id returns the same order.
func (s *TopUpService) CreateTopUp(ctx context.Context, merchantID, amount int64, requestID string) (*model.TopUpOrder, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if requestID == "" {
		return nil, invalidParam("request_id is required")
	}

	existing, err := s.topUpRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("lookup top-up: %w", err)
	}
	if existing != nil {
		if existing.MerchantID != merchantID {
			return nil, invalidParam("request_id already used")
		}
		return existing, nil
	}

	order := &model.TopUpOrder{
		OrderNo:    idgen.GenerateTopUpNo(),
		RequestID:  requestID,
		MerchantID: merchantID,
		Amount:     amount,
		Status:     model.TopUpStatusCreated,
		ExpiredAt:  time.Now().Add(time.Duration(s.cfg.Business.TopUpTimeoutMinutes) * time.Minute),
	}
	if err := s.topUpRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("create top-up: %w", err)
	}

	s.logger.Infow("top-up created", "order_no", order.OrderNo, "merchant_id", merchantID, "amount", amount)
	return order, nil
}

func (s *TopUpService) getOwned(ctx context.Context, merchantID int64, orderNo string) (*model.TopUpOrder, error) {
	order, err := s.topUpRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		return nil, err
	}
	if order.MerchantID != merchantID {
		return nil, repository.ErrTopUpNotFound
	}
	return order, nil
}

// VerifyTopUp checks the slip and credits the wallet once it is accepted.
// A rejected slip fails the order; a verifier outage leaves it open for retry.
func (s *TopUpService) VerifyTopUp(ctx context.Context, merchantID int64, orderNo, slipRef string) (*model.TopUpOrder, error) {
	if slipRef == "" {
		return nil, invalidParam("slip_ref is required")
	}
	order, err := s.getOwned(ctx, merchantID, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == model.TopUpStatusPaid {
		return order, nil
	}
	if order.Status != model.TopUpStatusCreated {
		return nil, ErrInvalidTransition
	}
	if time.Now().After(order.ExpiredAt) {
		return nil, ErrTopUpExpired
	}

	err = s.topUpRepo.UpdateStatus(ctx, nil, orderNo, model.TopUpStatusCreated, model.TopUpStatusVerifying,
		map[string]interface{}{"slip_ref": slipRef})
	if err != nil {
		return nil, err
	}

	_, verr := s.verifier.Verify(ctx, slipRef, order.Amount)
	if verr != nil {
		if errors.Is(verr, slip.ErrSlipRejected) {
			if err := s.topUpRepo.UpdateStatus(ctx, nil, orderNo, model.TopUpStatusVerifying, model.TopUpStatusFailed,
				map[string]interface{}{"fail_reason": verr.Error()}); err != nil {
				s.logger.Errorw("mark top-up failed", "order_no", orderNo, "err", err)
			}
			s.logger.Infow("top-up slip rejected", "order_no", orderNo)
			return nil, verr
		}
		if err := s.topUpRepo.UpdateStatus(ctx, nil, orderNo, model.TopUpStatusVerifying, model.TopUpStatusCreated, nil); err != nil {
			s.logger.Errorw("reopen top-up", "order_no", orderNo, "err", err)
		}
		return nil, fmt.Errorf("verify slip: %w", verr)
	}

	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}
	return s.topUpRepo.GetByOrderNo(ctx, nil, orderNo)
}

// settle credits the wallet and marks the order paid in one transaction.
func (s *TopUpService) settle(ctx context.Context, order *model.TopUpOrder) error {
	owner := model.MerchantOwner(order.MerchantID)
	err := s.ledger.WithLock(ctx, owner, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			trans, err := s.ledger.PostTx(ctx, tx, PostRequest{
				Owner:       owner,
				Amount:      order.Amount,
				Type:        model.TransactionTypeTopUp,
				Reference:   order.OrderNo,
				Description: "top-up " + order.OrderNo,
			})
			if err != nil {
				return err
			}
			err = s.topUpRepo.UpdateStatus(ctx, tx, order.OrderNo, model.TopUpStatusVerifying, model.TopUpStatusPaid,
				map[string]interface{}{"transaction_id": trans.ID})
			if err != nil {
				return err
			}

			msg, err := newOutboxMessage(s.cfg.Kafka.Topic.WalletEvents, model.EventTopUpPaid, owner.String(), TopUpEvent{
				OrderNo:    order.OrderNo,
				MerchantID: order.MerchantID,
				Amount:     order.Amount,
				PaidAt:     time.Now().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			return s.outboxRepo.Create(ctx, tx, msg)
		})
	})
	if err != nil {
		return err
	}
	s.logger.Infow("top-up paid", "order_no", order.OrderNo, "merchant_id", order.MerchantID, "amount", order.Amount)
	return nil
}

// ResumeTopUp returns an order the merchant can still pay.
func (s *TopUpService) ResumeTopUp(ctx context.Context, merchantID int64, orderNo string) (*model.TopUpOrder, error) {
	order, err := s.getOwned(ctx, merchantID, orderNo)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case model.TopUpStatusPaid:
		return order, nil
	case model.TopUpStatusCreated:
		if time.Now().After(order.ExpiredAt) {
			return nil, ErrTopUpExpired
		}
		return order, nil
	default:
		return nil, ErrInvalidTransition
	}
}

func (s *TopUpService) CancelTopUp(ctx context.Context, merchantID int64, orderNo string) (*model.TopUpOrder, error) {
	order, err := s.getOwned(ctx, merchantID, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != model.TopUpStatusCreated {
		return nil, ErrInvalidTransition
	}
	if err := s.topUpRepo.UpdateStatus(ctx, nil, orderNo, model.TopUpStatusCreated, model.TopUpStatusCancelled, nil); err != nil {
		return nil, err
	}
	order.Status = model.TopUpStatusCancelled
	return order, nil
}

func (s *TopUpService) ListTopUps(ctx context.Context, merchantID int64, page, pageSize int) ([]*model.TopUpOrder, int64, error) {
	return s.topUpRepo.ListByMerchant(ctx, merchantID, page, pageSize)
}

// CloseExpired closes CREATED orders past their expiry and returns how many
// were closed.
func (s *TopUpService) CloseExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	orders, err := s.topUpRepo.GetExpiredOrders(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, order := range orders {
		err := s.topUpRepo.UpdateStatus(ctx, nil, order.OrderNo, model.TopUpStatusCreated, model.TopUpStatusClosed, nil)
		if err != nil {
			s.logger.Warnw("close expired top-up", "order_no", order.OrderNo, "err", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// ReopenStuck moves orders stuck in VERIFYING since before the cutoff back to
// CREATED so the merchant can verify again.
func (s *TopUpService) ReopenStuck(ctx context.Context, before time.Time, limit int) (int, error) {
	orders, err := s.topUpRepo.GetStuckVerifying(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, order := range orders {
		err := s.topUpRepo.UpdateStatus(ctx, nil, order.OrderNo, model.TopUpStatusVerifying, model.TopUpStatusCreated, nil)
		if err != nil {
			s.logger.Warnw("reopen stuck top-up", "order_no", order.OrderNo, "err", err)
			continue
		}
		reopened++
	}
	return reopened, nil
}
