package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"couponhub/internal/model"
	"couponhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNotificationSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.notifications.now = func() time.Time {
		return time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	}

	open := testutil.TestUser(t, env.db, testutil.WithChatID("1001"))
	disabled := testutil.TestUser(t, env.db)
	noPromo := testutil.TestUser(t, env.db)
	sleeping := testutil.TestUser(t, env.db)
	awake := testutil.TestUser(t, env.db)

	_, err := env.notifications.UpdatePreferences(ctx, disabled.ID, PreferencesRequest{Enabled: false})
	require.NoError(t, err)
	_, err = env.notifications.UpdatePreferences(ctx, noPromo.ID, PreferencesRequest{
		Enabled:    true,
		Categories: map[string]bool{CategoryPromotion: false},
	})
	require.NoError(t, err)
	// 22:00-07:00 wraps midnight, 23:30 UTC is inside
	_, err = env.notifications.UpdatePreferences(ctx, sleeping.ID, PreferencesRequest{
		Enabled:      true,
		DNDStartHour: intPtr(22),
		DNDEndHour:   intPtr(7),
		Timezone:     "UTC",
	})
	require.NoError(t, err)
	// 23:30 UTC is 06:30 in Bangkok, outside 01:00-06:00
	_, err = env.notifications.UpdatePreferences(ctx, awake.ID, PreferencesRequest{
		Enabled:      true,
		DNDStartHour: intPtr(1),
		DNDEndHour:   intPtr(6),
		Timezone:     "Asia/Bangkok",
	})
	require.NoError(t, err)

	result, err := env.notifications.Send(ctx, SendRequest{
		UserIDs:  []int64{open.ID, disabled.ID, noPromo.ID, sleeping.ID, awake.ID, open.ID},
		Category: CategoryPromotion,
		Title:    "Flash sale",
		Body:     "50% off today",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 3, result.Skipped)

	var messages []model.OutboxMessage
	require.NoError(t, env.db.Where("event_type = ?", model.EventPushNotification).Order("id").Find(&messages).Error)
	require.Len(t, messages, 2)
	assert.Equal(t, env.cfg.Kafka.Topic.Push, messages[0].Topic)

	var payload PushPayload
	require.NoError(t, json.Unmarshal([]byte(messages[0].Payload), &payload))
	assert.Equal(t, open.ID, payload.UserID)
	assert.Equal(t, "1001", payload.ChatID)
	assert.Equal(t, "Flash sale", payload.Title)

	t.Run("other categories still reach the promo opt-out", func(t *testing.T) {
		result, err := env.notifications.Send(ctx, SendRequest{
			UserIDs:  []int64{noPromo.ID},
			Category: CategoryWallet,
			Title:    "Top-up received",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
	})
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pref, err := env.notifications.GetPreferences(ctx, 77)
	require.NoError(t, err)
	assert.True(t, pref.Enabled)

	_, err = env.notifications.UpdatePreferences(ctx, 77, PreferencesRequest{Enabled: true, DNDStartHour: intPtr(22)})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = env.notifications.UpdatePreferences(ctx, 77, PreferencesRequest{Enabled: true, DNDStartHour: intPtr(24), DNDEndHour: intPtr(6)})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = env.notifications.UpdatePreferences(ctx, 77, PreferencesRequest{Enabled: true, Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = env.notifications.UpdatePreferences(ctx, 77, PreferencesRequest{Enabled: true, Timezone: "Asia/Bangkok"})
	require.NoError(t, err)
	pref, err = env.notifications.UpdatePreferences(ctx, 77, PreferencesRequest{Enabled: false})
	require.NoError(t, err)
	assert.False(t, pref.Enabled)
	assert.Equal(t, "", pref.Timezone)
}
