package repository

import (
	"context"
	"errors"

	"couponhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByOwner(ctx context.Context, tx *gorm.DB, owner model.Owner) (*model.Account, error) {
	var account model.Account
	err := conn(r.db, tx).WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		First(&account).Error
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	return &account, nil
}

func (r *AccountRepository) GetByOwnerForUpdate(ctx context.Context, tx *gorm.DB, owner model.Owner) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		First(&account).Error
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	return &account, nil
}

// GetOrCreate returns the owner's account, creating it with the given opening
// balance when missing.
func (r *AccountRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, owner model.Owner, opening int64) (*model.Account, error) {
	db := conn(r.db, tx)
	account, err := r.GetByOwnerForUpdate(ctx, db, owner)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Balance:   opening,
	}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}
	return r.GetByOwnerForUpdate(ctx, db, owner)
}

// Apply adds a signed amount to the balance. The update only matches while the
// version is unchanged and the result stays non-negative.
func (r *AccountRepository) Apply(ctx context.Context, tx *gorm.DB, owner model.Owner, amount int64, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_type = ? AND owner_id = ? AND balance + ? >= 0 AND version = ?", owner.Type, owner.ID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.GetByOwner(ctx, tx, owner)
		if err != nil {
			return err
		}
		if account.Balance+amount < 0 {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}
	return nil
}

// Resync overwrites the materialised balance with the ledger snapshot.
func (r *AccountRepository) Resync(ctx context.Context, tx *gorm.DB, owner model.Owner, balance int64, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_type = ? AND owner_id = ? AND version = ?", owner.Type, owner.ID, version).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}
