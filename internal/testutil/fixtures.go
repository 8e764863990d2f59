package testutil

import (
	"fmt"
	"testing"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/pkg/idgen"

	"gorm.io/gorm"
)

// TestConfig returns the default configuration with the values Validate
// requires filled in.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = ":memory:"
	cfg.JWT.Secret = "test-secret"
	cfg.Server.Mode = "test"
	return cfg
}

// CompleteBank is a bank account that passes the KYC check.
func CompleteBank() model.BankDetails {
	return model.BankDetails{
		BankName:          "Kasikorn Bank",
		BankAccountNumber: "0123456789",
		BankAccountName:   "Test Shop Co., Ltd.",
	}
}

func TestMerchant(t *testing.T, db *gorm.DB, opts ...func(*model.Merchant)) *model.Merchant {
	t.Helper()

	merchant := &model.Merchant{
		OwnerUserID: time.Now().UnixNano() % 100000,
		Name:        fmt.Sprintf("shop_%d", time.Now().UnixNano()%10000),
	}
	for _, opt := range opts {
		opt(merchant)
	}

	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("Failed to create test merchant: %v", err)
	}
	return merchant
}

func WithBank(bank model.BankDetails) func(*model.Merchant) {
	return func(m *model.Merchant) {
		m.Bank = bank
	}
}

func WithReferrer(userID int64) func(*model.Merchant) {
	return func(m *model.Merchant) {
		m.ReferredByUserID = &userID
	}
}

func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		DisplayName: fmt.Sprintf("user_%d", time.Now().UnixNano()%10000),
	}
	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func WithChatID(chatID string) func(*model.User) {
	return func(u *model.User) {
		u.TelegramChatID = chatID
	}
}

// TestPlan loads a seeded plan, optionally overriding its price.
func TestPlan(t *testing.T, db *gorm.DB, planID string, price ...int64) *model.SubscriptionPlan {
	t.Helper()

	if len(price) > 0 {
		if err := db.Model(&model.SubscriptionPlan{}).Where("id = ?", planID).Update("price", price[0]).Error; err != nil {
			t.Fatalf("Failed to set plan price: %v", err)
		}
	}

	var plan model.SubscriptionPlan
	if err := db.First(&plan, "id = ?", planID).Error; err != nil {
		t.Fatalf("Failed to load plan %s: %v", planID, err)
	}
	return &plan
}

// TestSubscription inserts a subscription row directly, bypassing the state
// machine.
func TestSubscription(t *testing.T, db *gorm.DB, merchantID int64, status string, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	now := time.Now()
	end := now.AddDate(0, 1, 0)
	sub := &model.Subscription{
		MerchantID:         merchantID,
		PlanID:             model.PlanBasic,
		Status:             status,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
	}
	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return sub
}

func WithPlan(planID string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.PlanID = planID
	}
}

func WithPeriodEnd(end time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		start := end.AddDate(0, -1, 0)
		s.CurrentPeriodStart = &start
		s.CurrentPeriodEnd = &end
	}
}

// SeedBalance appends a completed top-up row so the derived balance grows by
// amount. The account row is left alone; the ledger resyncs it on the next post.
func SeedBalance(t *testing.T, db *gorm.DB, owner model.Owner, amount int64) *model.Transaction {
	t.Helper()

	var last model.Transaction
	before := int64(0)
	err := db.Where("owner_type = ? AND owner_id = ? AND (status = ? OR status = '')",
		owner.Type, owner.ID, model.TransactionStatusCompleted).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if last.ID != 0 {
		before = last.BalanceAfter
	}

	trans := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		Status:        model.TransactionStatusCompleted,
		Type:          model.TransactionTypeTopUp,
		Description:   "seed",
		CreatedAt:     time.Now(),
	}
	if err := db.Create(trans).Error; err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}
	return trans
}
