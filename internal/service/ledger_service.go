package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/infrastructure/lock"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/idgen"
	"couponhub/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService owns the wallet ledger. Balances are read from the newest
// settled row's balance_after, and Post is the only way rows are written.
type LedgerService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	logger      *logger.Logger
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewLedgerService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log *logger.Logger) *LedgerService {
	return &LedgerService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      log,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// PostRequest describes one ledger row. Amount is signed: credits positive,
// debits negative. A non-empty Reference makes the post idempotent.
type PostRequest struct {
	Owner       model.Owner
	Amount      int64
	Type        string
	Reference   string
	Description string
}

type LedgerEvent struct {
	TransactionNo string `json:"transaction_no"`
	OwnerType     string `json:"owner_type"`
	OwnerID       int64  `json:"owner_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
	CreatedAt     string `json:"created_at"`
}

// DeriveBalance returns the owner's current balance, 0 for an empty ledger.
func (s *LedgerService) DeriveBalance(ctx context.Context, owner model.Owner) (int64, error) {
	return s.deriveBalance(ctx, nil, owner)
}

func (s *LedgerService) deriveBalance(ctx context.Context, tx *gorm.DB, owner model.Owner) (int64, error) {
	latest, err := s.ledgerRepo.LatestSettled(ctx, tx, owner)
	if err != nil {
		return 0, fmt.Errorf("derive balance of %s: %w", owner, err)
	}
	if latest == nil {
		return 0, nil
	}
	return latest.BalanceAfter, nil
}

// WithLock runs fn while holding the owner's wallet lock. Every
// check-then-write sequence on a wallet runs under it.
func (s *LedgerService) WithLock(ctx context.Context, owner model.Owner, fn func() error) error {
	if s.redisClient == nil {
		return fn()
	}

	walletLock := lock.NewWalletLock(s.redisClient, owner, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		s.logger.Warnw("wallet lock not acquired", "owner", owner.String(), "err", err)
		return fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	defer func() {
		if err := walletLock.Unlock(context.Background()); err != nil {
			s.logger.Warnw("wallet unlock failed", "owner", owner.String(), "err", err)
		}
	}()
	return fn()
}

// Post takes the wallet lock and writes one row in its own DB transaction.
func (s *LedgerService) Post(ctx context.Context, req PostRequest) (*model.Transaction, error) {
	var trans *model.Transaction
	err := s.WithLock(ctx, req.Owner, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			trans, err = s.PostTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return trans, nil
}

// PostTx writes one row inside the caller's transaction. The caller must hold
// the owner's wallet lock.
func (s *LedgerService) PostTx(ctx context.Context, tx *gorm.DB, req PostRequest) (*model.Transaction, error) {
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}

	var reference *string
	if req.Reference != "" {
		existing, err := s.ledgerRepo.GetByReference(ctx, tx, req.Reference)
		if err != nil {
			return nil, fmt.Errorf("lookup reference: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
		ref := req.Reference
		reference = &ref
	}

	balance, err := s.deriveBalance(ctx, tx, req.Owner)
	if err != nil {
		return nil, err
	}
	if balance+req.Amount < 0 {
		return nil, &InsufficientBalanceError{Required: -req.Amount, Available: balance}
	}

	if err := s.applyToAccount(ctx, tx, req.Owner, balance, req.Amount); err != nil {
		return nil, err
	}

	trans := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		OwnerType:     req.Owner.Type,
		OwnerID:       req.Owner.ID,
		Amount:        req.Amount,
		BalanceBefore: balance,
		BalanceAfter:  balance + req.Amount,
		Status:        model.TransactionStatusCompleted,
		Type:          req.Type,
		Reference:     reference,
		Description:   req.Description,
		CreatedAt:     time.Now(),
	}
	if err := s.ledgerRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("insert ledger row: %w", err)
	}

	msg, err := newOutboxMessage(s.cfg.Kafka.Topic.WalletEvents, model.EventLedgerPosted, req.Owner.String(), LedgerEvent{
		TransactionNo: trans.TransactionNo,
		OwnerType:     trans.OwnerType,
		OwnerID:       trans.OwnerID,
		Type:          trans.Type,
		Amount:        trans.Amount,
		BalanceAfter:  trans.BalanceAfter,
		CreatedAt:     trans.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("write outbox: %w", err)
	}

	return trans, nil
}

// applyToAccount moves the materialised balance by amount with a
// compare-and-swap on the account version. A row that drifted from the ledger
// snapshot is brought back in line first.
func (s *LedgerService) applyToAccount(ctx context.Context, tx *gorm.DB, owner model.Owner, snapshot, amount int64) error {
	account, err := s.accountRepo.GetOrCreate(ctx, tx, owner, snapshot)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	version := account.Version
	if account.Balance != snapshot {
		s.logger.Warnw("account balance drifted from ledger, resyncing",
			"owner", owner.String(), "account", account.Balance, "ledger", snapshot)
		if err := s.accountRepo.Resync(ctx, tx, owner, snapshot, version); err != nil {
			return s.mapAccountErr(err, snapshot, amount)
		}
		version++
	}

	if err := s.accountRepo.Apply(ctx, tx, owner, amount, version); err != nil {
		return s.mapAccountErr(err, snapshot, amount)
	}
	return nil
}

func (s *LedgerService) mapAccountErr(err error, snapshot, amount int64) error {
	switch {
	case errors.Is(err, repository.ErrBalanceNotEnough):
		return &InsufficientBalanceError{Required: -amount, Available: snapshot}
	case errors.Is(err, repository.ErrOptimisticLock):
		return ErrSystemBusy
	default:
		return fmt.Errorf("update account: %w", err)
	}
}

// RequireBalance fails with InsufficientBalanceError unless the owner holds at
// least amount.
func (s *LedgerService) RequireBalance(ctx context.Context, tx *gorm.DB, owner model.Owner, amount int64) (int64, error) {
	balance, err := s.deriveBalance(ctx, tx, owner)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return balance, &InsufficientBalanceError{Required: amount, Available: balance}
	}
	return balance, nil
}

func (s *LedgerService) History(ctx context.Context, owner model.Owner, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.ledgerRepo.ListByOwner(ctx, owner, page, pageSize)
}
