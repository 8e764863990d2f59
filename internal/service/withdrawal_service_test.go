package service

import (
	"context"
	"errors"
	"testing"

	"couponhub/internal/model"
	"couponhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		amount int64
		fee    int64
		net    int64
	}{
		{"minimum fee applies", 10000, 1000, 9000},
		{"exactly at the crossover", 50000, 1000, 49000},
		{"percentage above the minimum", 100000, 2000, 98000},
		{"rounds half up", 123475, 2470, 121005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := env.withdrawals.CalculateFee(tt.amount)
			assert.Equal(t, tt.fee, fee)
			assert.Equal(t, tt.net, net)
		})
	}
}

func TestRequestMerchantWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves the amount", func(t *testing.T) {
		env := newTestEnv(t)
		merchant := testutil.TestMerchant(t, env.db, testutil.WithBank(testutil.CompleteBank()))
		owner := model.MerchantOwner(merchant.ID)
		testutil.SeedBalance(t, env.db, owner, 150000)

		w, err := env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 100000)
		require.NoError(t, err)
		assert.Equal(t, model.WithdrawalStatusPending, w.Status)
		assert.Equal(t, int64(2000), w.Fee)
		assert.Equal(t, int64(98000), w.NetAmount)
		assert.Equal(t, testutil.CompleteBank(), w.Bank)
		require.NotNil(t, w.DebitTransactionID)

		assert.Equal(t, int64(50000), env.balance(t, owner))
		assert.Equal(t, int64(1), env.count(t, &model.Transaction{}, "type = ?", model.TransactionTypeWithdraw))
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		merchant := testutil.TestMerchant(t, env.db, testutil.WithBank(testutil.CompleteBank()))
		noBank := testutil.TestMerchant(t, env.db)
		testutil.SeedBalance(t, env.db, model.MerchantOwner(merchant.ID), 60000)
		testutil.SeedBalance(t, env.db, model.MerchantOwner(noBank.ID), 60000)

		_, err := env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 49999)
		assert.ErrorIs(t, err, ErrBelowMinimum)

		_, err = env.withdrawals.RequestMerchantWithdrawal(ctx, noBank.ID, 50000)
		assert.ErrorIs(t, err, ErrKYCIncomplete)

		_, err = env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 70000)
		var ibe *InsufficientBalanceError
		require.True(t, errors.As(err, &ibe))
		assert.Equal(t, int64(60000), ibe.Available)

		assert.Equal(t, int64(0), env.count(t, &model.WithdrawalRequest{}, ""))
	})

	t.Run("one open request per owner", func(t *testing.T) {
		env := newTestEnv(t)
		merchant := testutil.TestMerchant(t, env.db, testutil.WithBank(testutil.CompleteBank()))
		testutil.SeedBalance(t, env.db, model.MerchantOwner(merchant.ID), 200000)

		_, err := env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 50000)
		require.NoError(t, err)
		_, err = env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 50000)
		assert.ErrorIs(t, err, ErrWithdrawalInProgress)
	})
}

func TestWithdrawalScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.TestUser(t, env.db)
	owner := model.UserOwner(user.ID)
	testutil.SeedBalance(t, env.db, owner, 100000)

	w, err := env.withdrawals.RequestReferralWithdrawal(ctx, user.ID, 100000, testutil.CompleteBank())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), w.Fee)
	assert.Equal(t, int64(98000), w.NetAmount)
	assert.Equal(t, int64(0), env.balance(t, owner))

	rejected, err := env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindReferral, w.ID, UpdateWithdrawalRequest{
		Status:          model.WithdrawalStatusRejected,
		RejectionReason: "account name mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ProcessedAt)
	require.NotNil(t, rejected.RefundTransactionID)

	assert.Equal(t, int64(100000), env.balance(t, owner))

	var refund model.Transaction
	require.NoError(t, env.db.First(&refund, *rejected.RefundTransactionID).Error)
	assert.Equal(t, model.TransactionTypeRefund, refund.Type)
	assert.Equal(t, int64(100000), refund.Amount)
	assert.Equal(t, "refund (rejected) "+w.WithdrawalNo, refund.Description)

	// rejected is terminal
	_, err = env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindReferral, w.ID, UpdateWithdrawalRequest{Status: model.WithdrawalStatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// a push notification was queued for the requester
	assert.Equal(t, int64(1), env.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventPushNotification))
}

func TestWithdrawalTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	merchant := testutil.TestMerchant(t, env.db, testutil.WithBank(testutil.CompleteBank()))
	owner := model.MerchantOwner(merchant.ID)
	testutil.SeedBalance(t, env.db, owner, 100000)

	w, err := env.withdrawals.RequestMerchantWithdrawal(ctx, merchant.ID, 60000)
	require.NoError(t, err)

	_, err = env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindReferral, w.ID, UpdateWithdrawalRequest{Status: model.WithdrawalStatusProcessing})
	assert.Error(t, err, "kind must match")

	// a payout cannot skip processing
	_, err = env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindMerchant, w.ID, UpdateWithdrawalRequest{Status: model.WithdrawalStatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	processing, err := env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindMerchant, w.ID, UpdateWithdrawalRequest{
		Status:    model.WithdrawalStatusProcessing,
		AdminNote: "sent to bank",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent to bank", processing.AdminNote)
	assert.Nil(t, processing.ProcessedAt)

	_, err = env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindMerchant, w.ID, UpdateWithdrawalRequest{Status: model.WithdrawalStatusPending})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindMerchant, w.ID, UpdateWithdrawalRequest{Status: model.WithdrawalStatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, done.ProcessedAt)
	assert.Equal(t, int64(40000), env.balance(t, owner))
}

func TestBatchProcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		user := testutil.TestUser(t, env.db)
		testutil.SeedBalance(t, env.db, model.UserOwner(user.ID), 50000)
		w, err := env.withdrawals.RequestReferralWithdrawal(ctx, user.ID, 20000, testutil.CompleteBank())
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}

	_, err := env.withdrawals.UpdateStatus(ctx, model.WithdrawalKindReferral, ids[2], UpdateWithdrawalRequest{Status: model.WithdrawalStatusRejected})
	require.NoError(t, err)

	n, err := env.withdrawals.BatchProcess(ctx, model.WithdrawalKindReferral, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	items, total, err := env.withdrawals.ListAll(ctx, model.WithdrawalKindReferral, model.WithdrawalStatusProcessing, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	var rejected model.WithdrawalRequest
	require.NoError(t, env.db.First(&rejected, ids[2]).Error)
	assert.Equal(t, model.WithdrawalStatusRejected, rejected.Status)

	n, err = env.withdrawals.BatchProcess(ctx, model.WithdrawalKindMerchant, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
