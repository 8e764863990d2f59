package job

import (
	"context"
	"testing"
	"time"

	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/internal/testutil"
	"couponhub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpTimeoutJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)
	cfg := testutil.TestConfig()
	log := logger.NewNop()
	ctx := context.Background()

	ledger := service.NewLedgerService(db, rdb, cfg, log)
	topUps := service.NewTopUpService(db, cfg, log, ledger, slip.ManualVerifier{})
	merchant := testutil.TestMerchant(t, db)

	expired, err := topUps.CreateTopUp(ctx, merchant.ID, 20000, "req-1")
	require.NoError(t, err)
	stuck, err := topUps.CreateTopUp(ctx, merchant.ID, 30000, "req-2")
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.TopUpOrder{}).Where("order_no = ?", stuck.OrderNo).
		Updates(map[string]interface{}{"status": model.TopUpStatusVerifying, "expired_at": time.Now().Add(time.Hour)}).Error)

	j := NewTopUpTimeoutJob(topUps, log)
	j.RunOnce(ctx, time.Now().Add(time.Duration(cfg.Business.TopUpTimeoutMinutes+10)*time.Minute))

	status := func(orderNo string) string {
		var o model.TopUpOrder
		require.NoError(t, db.Where("order_no = ?", orderNo).First(&o).Error)
		return o.Status
	}
	assert.Equal(t, model.TopUpStatusClosed, status(expired.OrderNo))
	assert.Equal(t, model.TopUpStatusCreated, status(stuck.OrderNo))
}

func TestSubscriptionSweeper(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)
	cfg := testutil.TestConfig()
	log := logger.NewNop()
	ctx := context.Background()

	ledger := service.NewLedgerService(db, rdb, cfg, log)
	referral := service.NewReferralService(db, cfg, log, ledger)
	subs := service.NewSubscriptionService(db, cfg, log, ledger, referral)

	merchant := testutil.TestMerchant(t, db)
	testutil.TestSubscription(t, db, merchant.ID, model.SubscriptionStatusActive,
		testutil.WithPeriodEnd(time.Now().Add(-time.Hour)),
		func(s *model.Subscription) { s.CancelAtPeriodEnd = true })

	sweeper := NewSubscriptionSweeper(subs, log, cfg.Business.SweepSpec)
	report := sweeper.RunOnce(ctx)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Canceled)

	var sub model.Subscription
	require.NoError(t, db.Where("merchant_id = ?", merchant.ID).First(&sub).Error)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
}

func TestSubscriptionSweeperRejectsBadSpec(t *testing.T) {
	sweeper := NewSubscriptionSweeper(nil, logger.NewNop(), "every now and then")
	assert.Error(t, sweeper.Start(context.Background()))
}
