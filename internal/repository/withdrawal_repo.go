package repository

import (
	"context"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, w *model.WithdrawalRequest) error {
	return conn(r.db, tx).WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, tx *gorm.DB, kind string, id int64) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	err := conn(r.db, tx).WithContext(ctx).Where("id = ? AND kind = ?", id, kind).First(&w).Error
	if err != nil {
		return nil, notFound(err, ErrWithdrawalNotFound)
	}
	return &w, nil
}

// HasOpen reports whether the owner has a pending or processing request.
func (r *WithdrawalRepository) HasOpen(ctx context.Context, tx *gorm.DB, owner model.Owner) (bool, error) {
	var count int64
	err := conn(r.db, tx).WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("owner_type = ? AND owner_id = ? AND status IN ?", owner.Type, owner.ID,
			[]string{model.WithdrawalStatusPending, model.WithdrawalStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus moves one request from fromStatus to toStatus. Zero affected
// rows means another request changed it first.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanWithdrawalTransition(fromStatus, toStatus) {
		return ErrStatusInvalid
	}

	updates := map[string]interface{}{"status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
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

// MarkProcessing moves the listed pending requests of one kind to processing
// and returns how many moved. Requests in other states are left alone.
func (r *WithdrawalRepository) MarkProcessing(ctx context.Context, kind string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id IN ? AND kind = ? AND status = ?", ids, kind, model.WithdrawalStatusPending).
		Update("status", model.WithdrawalStatusProcessing)
	return result.RowsAffected, result.Error
}

type WithdrawalFilter struct {
	Kind   string
	Owner  *model.Owner
	Status string
}

func (r *WithdrawalRepository) List(ctx context.Context, f WithdrawalFilter, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var items []*model.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("kind = ?", f.Kind)
	if f.Owner != nil {
		query = query.Where("owner_type = ? AND owner_id = ?", f.Owner.Type, f.Owner.ID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}
