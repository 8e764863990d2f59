package repository

import (
	"context"
	"time"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	return conn(r.db, tx).WithContext(ctx).Create(sub).Error
}

// Save writes every column of an existing row.
func (r *SubscriptionRepository) Save(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	return conn(r.db, tx).WithContext(ctx).Save(sub).Error
}

func (r *SubscriptionRepository) GetByMerchantID(ctx context.Context, tx *gorm.DB, merchantID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := conn(r.db, tx).WithContext(ctx).Where("merchant_id = ?", merchantID).First(&sub).Error
	if err != nil {
		return nil, notFound(err, ErrSubscriptionNotFound)
	}
	return &sub, nil
}

// UpdateFromStatus applies updates only while the row still has fromStatus.
func (r *SubscriptionRepository) UpdateFromStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus string, updates map[string]interface{}) error {
	if to, ok := updates["status"].(string); ok && to != fromStatus && !model.CanSubscriptionTransition(fromStatus, to) {
		return ErrStatusInvalid
	}

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Updates applies updates without a status guard.
func (r *SubscriptionRepository) Updates(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListPeriodEnded returns active rows whose period ended before now.
func (r *SubscriptionRepository) ListPeriodEnded(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND current_period_end IS NOT NULL AND current_period_end < ?", model.SubscriptionStatusActive, now).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) ListTrialEnded(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND trial_end_date IS NOT NULL AND trial_end_date < ?", model.SubscriptionStatusTrial, now).
		Order("trial_end_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ListPastDueBefore returns past_due rows that became past_due before cutoff.
func (r *SubscriptionRepository) ListPastDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND past_due_since IS NOT NULL AND past_due_since < ?", model.SubscriptionStatusPastDue, cutoff).
		Order("past_due_since ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	return &plan, nil
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	var plans []*model.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC").
		Find(&plans).Error
	return plans, err
}

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Invoice, error) {
	var invoice model.Invoice
	err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	return &invoice, nil
}

// MarkPaid moves a pending invoice to paid and links the ledger row.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, tx *gorm.DB, id, transactionID int64, paidAt time.Time) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, model.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"status":         model.InvoiceStatusPaid,
			"transaction_id": transactionID,
			"paid_at":        paidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *InvoiceRepository) MarkFailed(ctx context.Context, tx *gorm.DB, id int64) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, model.InvoiceStatusPending).
		Update("status", model.InvoiceStatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *InvoiceRepository) CountPaidByMerchant(ctx context.Context, tx *gorm.DB, merchantID int64) (int64, error) {
	var count int64
	err := conn(r.db, tx).WithContext(ctx).
		Model(&model.Invoice{}).
		Where("merchant_id = ? AND status = ?", merchantID, model.InvoiceStatusPaid).
		Count(&count).Error
	return count, err
}

func (r *InvoiceRepository) ListByMerchant(ctx context.Context, merchantID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	var invoices []*model.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("merchant_id = ?", merchantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&invoices).Error
	return invoices, total, err
}
