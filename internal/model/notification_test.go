package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func hour(h int) *int { return &h }

func TestNotificationPreference_InQuietHours(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 5, 1, h, 30, 0, 0, time.UTC) }

	wrap := &NotificationPreference{DNDStartHour: hour(22), DNDEndHour: hour(7), Timezone: "UTC"}
	assert.True(t, wrap.InQuietHours(at(23)))
	assert.True(t, wrap.InQuietHours(at(3)))
	assert.False(t, wrap.InQuietHours(at(7)))
	assert.False(t, wrap.InQuietHours(at(12)))

	day := &NotificationPreference{DNDStartHour: hour(9), DNDEndHour: hour(17)}
	assert.True(t, day.InQuietHours(at(9)))
	assert.False(t, day.InQuietHours(at(17)))

	assert.False(t, (&NotificationPreference{}).InQuietHours(at(3)))
}

func TestNotificationPreference_Timezone(t *testing.T) {
	// 16:00 UTC is 23:00 in Bangkok
	p := &NotificationPreference{DNDStartHour: hour(22), DNDEndHour: hour(6), Timezone: "Asia/Bangkok"}
	assert.True(t, p.InQuietHours(time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)))
	assert.False(t, p.InQuietHours(time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)))
}

func TestNotificationPreference_CategoryEnabled(t *testing.T) {
	p := &NotificationPreference{Categories: datatypes.JSONMap{"promo": false, "wallet": true}}
	assert.False(t, p.CategoryEnabled("promo"))
	assert.True(t, p.CategoryEnabled("wallet"))
	assert.True(t, p.CategoryEnabled("other"))
	assert.True(t, (&NotificationPreference{}).CategoryEnabled("promo"))
}

func TestCanTransitions(t *testing.T) {
	assert.True(t, CanSubscriptionTransition(SubscriptionStatusLocked, SubscriptionStatusActive))
	assert.True(t, CanSubscriptionTransition(SubscriptionStatusTrial, SubscriptionStatusActive))
	assert.False(t, CanSubscriptionTransition(SubscriptionStatusCanceled, SubscriptionStatusLocked))

	assert.True(t, CanWithdrawalTransition(WithdrawalStatusPending, WithdrawalStatusProcessing))
	assert.True(t, CanWithdrawalTransition(WithdrawalStatusProcessing, WithdrawalStatusRejected))
	assert.False(t, CanWithdrawalTransition(WithdrawalStatusCompleted, WithdrawalStatusRejected))
	assert.False(t, CanWithdrawalTransition(WithdrawalStatusProcessing, WithdrawalStatusPending))

	assert.True(t, CanTopUpTransition(TopUpStatusCreated, TopUpStatusVerifying))
	assert.False(t, CanTopUpTransition(TopUpStatusPaid, TopUpStatusCreated))
}
