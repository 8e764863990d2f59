package repository

import (
	"context"
	"errors"
	"time"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	return conn(r.db, tx).WithContext(ctx).Create(trans).Error
}

func (r *LedgerRepository) settled(db *gorm.DB) *gorm.DB {
	return db.Where("(status = ? OR status = '' OR status IS NULL)", model.TransactionStatusCompleted)
}

// LatestSettled returns the newest completed row of the owner, or nil.
func (r *LedgerRepository) LatestSettled(ctx context.Context, tx *gorm.DB, owner model.Owner) (*model.Transaction, error) {
	var trans model.Transaction
	q := conn(r.db, tx).WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID)
	err := r.settled(q).
		Order("created_at DESC").
		Order("id DESC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *LedgerRepository) GetByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Transaction, error) {
	var trans model.Transaction
	err := conn(r.db, tx).WithContext(ctx).Where("reference = ?", reference).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// FindRecent returns the newest completed row of the given type and
// description written at or after since, or nil.
func (r *LedgerRepository) FindRecent(ctx context.Context, tx *gorm.DB, owner model.Owner, txType, description string, since time.Time) (*model.Transaction, error) {
	var trans model.Transaction
	err := conn(r.db, tx).WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND type = ? AND description = ? AND status = ? AND created_at >= ?",
			owner.Type, owner.ID, txType, description, model.TransactionStatusCompleted, since).
		Order("created_at DESC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *LedgerRepository) ListByOwner(ctx context.Context, owner model.Owner, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
