package repository

import (
	"context"
	"errors"
	"time"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type TopUpRepository struct {
	db *gorm.DB
}

func NewTopUpRepository(db *gorm.DB) *TopUpRepository {
	return &TopUpRepository{db: db}
}

func (r *TopUpRepository) Create(ctx context.Context, tx *gorm.DB, order *model.TopUpOrder) error {
	return conn(r.db, tx).WithContext(ctx).Create(order).Error
}

func (r *TopUpRepository) GetByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (*model.TopUpOrder, error) {
	var order model.TopUpOrder
	err := conn(r.db, tx).WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		return nil, notFound(err, ErrTopUpNotFound)
	}
	return &order, nil
}

func (r *TopUpRepository) GetByRequestID(ctx context.Context, requestID string) (*model.TopUpOrder, error) {
	var order model.TopUpOrder
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *TopUpRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTopUpTransition(fromStatus, toStatus) {
		return ErrStatusInvalid
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.TopUpStatusPaid {
		updates["paid_at"] = time.Now()
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.TopUpOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *TopUpRepository) GetExpiredOrders(ctx context.Context, now time.Time, limit int) ([]*model.TopUpOrder, error) {
	var orders []*model.TopUpOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND expired_at < ?", model.TopUpStatusCreated, now).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// GetStuckVerifying returns orders left in VERIFYING since before the cutoff,
// e.g. after a crash between the verifier call and the status update.
func (r *TopUpRepository) GetStuckVerifying(ctx context.Context, before time.Time, limit int) ([]*model.TopUpOrder, error) {
	var orders []*model.TopUpOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.TopUpStatusVerifying, before).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *TopUpRepository) ListByMerchant(ctx context.Context, merchantID int64, page, pageSize int) ([]*model.TopUpOrder, int64, error) {
	var orders []*model.TopUpOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TopUpOrder{}).Where("merchant_id = ?", merchantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}
