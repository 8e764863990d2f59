package service

import (
	"context"
	"testing"
	"time"

	"couponhub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountingSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const merchantID = 11

	entries := []CreateEntryRequest{
		{Kind: model.EntryKindIncome, Category: "sales", Source: "shopee", Amount: 10000, OccurredOn: "2024-03-01"},
		{Kind: model.EntryKindIncome, Category: "sales", Source: "walk-in", Amount: 5000, OccurredOn: "2024-03-01"},
		{Kind: model.EntryKindExpense, Category: "rent", Source: "walk-in", Amount: 3000, OccurredOn: "2024-03-02"},
		{Kind: model.EntryKindIncome, Category: "sales", Source: "shopee", Amount: 7000, OccurredOn: "2024-04-15"},
	}
	var ids []int64
	for _, e := range entries {
		entry, err := env.accounting.CreateEntry(ctx, merchantID, e)
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}
	// another merchant's books stay separate
	_, err := env.accounting.CreateEntry(ctx, merchantID+1, CreateEntryRequest{Kind: model.EntryKindIncome, Amount: 999, OccurredOn: "2024-03-01"})
	require.NoError(t, err)

	march := DateRange{From: "2024-03-01", To: "2024-03-31"}

	byDay, err := env.accounting.Summarize(ctx, merchantID, march, model.GroupByDay)
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	assert.Equal(t, "2024-03-01", byDay[0].Key)
	assert.Equal(t, int64(15000), byDay[0].Income)
	assert.Equal(t, int64(0), byDay[0].Expense)
	assert.Equal(t, "2024-03-02", byDay[1].Key)
	assert.Equal(t, int64(3000), byDay[1].Expense)
	assert.Equal(t, int64(-3000), byDay[1].Net)

	bySource, err := env.accounting.Summarize(ctx, merchantID, march, model.GroupBySource)
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, "shopee", bySource[0].Key)
	assert.Equal(t, "walk-in", bySource[1].Key)
	assert.Equal(t, int64(2000), bySource[1].Net)

	t.Run("soft-deleted entries are excluded", func(t *testing.T) {
		require.NoError(t, env.accounting.DeleteEntry(ctx, merchantID, ids[2]))

		byCategory, err := env.accounting.Summarize(ctx, merchantID, march, model.GroupByCategory)
		require.NoError(t, err)
		require.Len(t, byCategory, 1)
		assert.Equal(t, "sales", byCategory[0].Key)

		listed, err := env.accounting.ListEntries(ctx, merchantID, march)
		require.NoError(t, err)
		assert.Len(t, listed, 2)

		var withDeleted int64
		require.NoError(t, env.db.Unscoped().Model(&model.AccountEntry{}).Where("merchant_id = ?", merchantID).Count(&withDeleted).Error)
		assert.Equal(t, int64(4), withDeleted)
	})

	t.Run("dashboard", func(t *testing.T) {
		d, err := env.accounting.Dashboard(ctx, merchantID, DateRange{From: "2024-03-01", To: "2024-04-30"})
		require.NoError(t, err)
		assert.Equal(t, int64(22000), d.Totals.Income)
		assert.Equal(t, int64(0), d.Totals.Expense)
		assert.Equal(t, int64(22000), d.Totals.Net)
		assert.Len(t, d.ByDay, 2)
		assert.Len(t, d.ByCategory, 1)
		assert.Len(t, d.BySource, 2)
	})

	t.Run("empty range", func(t *testing.T) {
		buckets, err := env.accounting.Summarize(ctx, merchantID, DateRange{From: "2023-01-01", To: "2023-01-31"}, model.GroupByDay)
		require.NoError(t, err)
		assert.Empty(t, buckets)

		d, err := env.accounting.Dashboard(ctx, merchantID, DateRange{From: "2023-01-01", To: "2023-01-31"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), d.Totals.Net)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := env.accounting.Summarize(ctx, merchantID, march, "week")
		assert.ErrorIs(t, err, ErrInvalidParam)

		_, err = env.accounting.CreateEntry(ctx, merchantID, CreateEntryRequest{Kind: "transfer", Amount: 1})
		assert.ErrorIs(t, err, ErrInvalidParam)

		_, err = env.accounting.CreateEntry(ctx, merchantID, CreateEntryRequest{Kind: model.EntryKindIncome, Amount: 1, OccurredOn: "01/03/2024"})
		assert.ErrorIs(t, err, ErrInvalidParam)
	})
}

func TestNormalizeRange(t *testing.T) {
	r, err := NormalizeRange("", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, DateRange{From: "2024-03-02", To: "2024-03-31"}, r)

	r, err = NormalizeRange("", "")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format(model.DateLayout), r.To)

	_, err = NormalizeRange("2024-04-01", "2024-03-01")
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = NormalizeRange("yesterday", "")
	assert.ErrorIs(t, err, ErrInvalidParam)
}
