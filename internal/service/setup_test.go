package service

import (
	"context"
	"testing"

	"couponhub/internal/config"
	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/model"
	"couponhub/internal/testutil"
	"couponhub/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db            *gorm.DB
	cfg           *config.Config
	ledger        *LedgerService
	referral      *ReferralService
	subs          *SubscriptionService
	withdrawals   *WithdrawalService
	notifications *NotificationService
	accounting    *AccountingService
	catalog       *CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)
	cfg := testutil.TestConfig()
	log := logger.NewNop()

	ledger := NewLedgerService(db, rdb, cfg, log)
	referral := NewReferralService(db, cfg, log, ledger)
	subs := NewSubscriptionService(db, cfg, log, ledger, referral)
	notifications := NewNotificationService(db, cfg, log)

	return &testEnv{
		db:            db,
		cfg:           cfg,
		ledger:        ledger,
		referral:      referral,
		subs:          subs,
		withdrawals:   NewWithdrawalService(db, cfg, log, ledger, notifications),
		notifications: notifications,
		accounting:    NewAccountingService(db, log),
		catalog:       NewCatalogService(db, log, subs),
	}
}

func (e *testEnv) topUps(verifier slip.Verifier) *TopUpService {
	return NewTopUpService(e.db, e.cfg, logger.NewNop(), e.ledger, verifier)
}

func (e *testEnv) balance(t *testing.T, owner model.Owner) int64 {
	t.Helper()
	b, err := e.ledger.DeriveBalance(context.Background(), owner)
	require.NoError(t, err)
	return b
}

func (e *testEnv) count(t *testing.T, value interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(value)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
