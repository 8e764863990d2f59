package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/model"
	"couponhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, slipRef string, amount int64) (*slip.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &slip.Result{Valid: true, Amount: amount, Ref: slipRef}, nil
}

func TestTopUpFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("verified slip credits the wallet once", func(t *testing.T) {
		env := newTestEnv(t)
		verifier := &fakeVerifier{}
		topUps := env.topUps(verifier)
		merchant := testutil.TestMerchant(t, env.db)
		owner := model.MerchantOwner(merchant.ID)

		order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-1")
		require.NoError(t, err)
		assert.Equal(t, model.TopUpStatusCreated, order.Status)

		again, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-1")
		require.NoError(t, err)
		assert.Equal(t, order.OrderNo, again.OrderNo)

		paid, err := topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-1")
		require.NoError(t, err)
		assert.Equal(t, model.TopUpStatusPaid, paid.Status)
		require.NotNil(t, paid.TransactionID)
		assert.Equal(t, int64(50000), env.balance(t, owner))

		// verifying a paid order is a no-op
		_, err = topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-1")
		require.NoError(t, err)
		assert.Equal(t, 1, verifier.calls)
		assert.Equal(t, int64(50000), env.balance(t, owner))
		assert.Equal(t, int64(1), env.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventTopUpPaid))
	})

	t.Run("rejected slip fails the order", func(t *testing.T) {
		env := newTestEnv(t)
		topUps := env.topUps(&fakeVerifier{err: slip.ErrSlipRejected})
		merchant := testutil.TestMerchant(t, env.db)

		order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-2")
		require.NoError(t, err)
		_, err = topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-X")
		assert.ErrorIs(t, err, slip.ErrSlipRejected)

		var stored model.TopUpOrder
		require.NoError(t, env.db.Where("order_no = ?", order.OrderNo).First(&stored).Error)
		assert.Equal(t, model.TopUpStatusFailed, stored.Status)
		assert.Equal(t, int64(0), env.balance(t, model.MerchantOwner(merchant.ID)))
	})

	t.Run("verifier outage reopens the order", func(t *testing.T) {
		env := newTestEnv(t)
		verifier := &fakeVerifier{err: errors.New("connection refused")}
		topUps := env.topUps(verifier)
		merchant := testutil.TestMerchant(t, env.db)

		order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-3")
		require.NoError(t, err)
		_, err = topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-3")
		require.Error(t, err)

		resumed, err := topUps.ResumeTopUp(ctx, merchant.ID, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, model.TopUpStatusCreated, resumed.Status)

		verifier.err = nil
		paid, err := topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-3")
		require.NoError(t, err)
		assert.Equal(t, model.TopUpStatusPaid, paid.Status)
	})

	t.Run("other merchants cannot see the order", func(t *testing.T) {
		env := newTestEnv(t)
		topUps := env.topUps(&fakeVerifier{})
		merchant := testutil.TestMerchant(t, env.db)
		other := testutil.TestMerchant(t, env.db)

		order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-4")
		require.NoError(t, err)
		_, err = topUps.VerifyTopUp(ctx, other.ID, order.OrderNo, "SLIP-4")
		assert.Error(t, err)
		_, err = topUps.CreateTopUp(ctx, other.ID, 50000, "req-4")
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("cancel only while created", func(t *testing.T) {
		env := newTestEnv(t)
		topUps := env.topUps(&fakeVerifier{})
		merchant := testutil.TestMerchant(t, env.db)

		order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-5")
		require.NoError(t, err)
		cancelled, err := topUps.CancelTopUp(ctx, merchant.ID, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, model.TopUpStatusCancelled, cancelled.Status)

		_, err = topUps.CancelTopUp(ctx, merchant.ID, order.OrderNo)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = topUps.VerifyTopUp(ctx, merchant.ID, order.OrderNo, "SLIP-5")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestTopUpExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topUps := env.topUps(&fakeVerifier{})
	merchant := testutil.TestMerchant(t, env.db)

	order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-exp")
	require.NoError(t, err)

	later := time.Now().Add(time.Duration(env.cfg.Business.TopUpTimeoutMinutes+1) * time.Minute)
	closed, err := topUps.CloseExpired(ctx, later, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	_, err = topUps.ResumeTopUp(ctx, merchant.ID, order.OrderNo)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	closed, err = topUps.CloseExpired(ctx, later, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestReopenStuck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topUps := env.topUps(&fakeVerifier{})
	merchant := testutil.TestMerchant(t, env.db)

	order, err := topUps.CreateTopUp(ctx, merchant.ID, 50000, "req-stuck")
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.TopUpOrder{}).Where("order_no = ?", order.OrderNo).
		Update("status", model.TopUpStatusVerifying).Error)

	reopened, err := topUps.ReopenStuck(ctx, time.Now().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened)

	resumed, err := topUps.ResumeTopUp(ctx, merchant.ID, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.TopUpStatusCreated, resumed.Status)
}
