package repository

import (
	"context"
	"errors"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) Create(ctx context.Context, m *model.Merchant) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MerchantRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Merchant, error) {
	var m model.Merchant
	err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, notFound(err, ErrMerchantNotFound)
	}
	return &m, nil
}

func (r *MerchantRepository) UpdateBank(ctx context.Context, id int64, bank model.BankDetails) error {
	result := r.db.WithContext(ctx).
		Model(&model.Merchant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"bank_name":           bank.BankName,
			"bank_account_number": bank.BankAccountNumber,
			"bank_account_name":   bank.BankAccountName,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMerchantNotFound
	}
	return nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// GetByIDs returns the users that exist, keyed by id.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var rows []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		users[u.ID] = u
	}
	return users, nil
}

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) GetByMerchantID(ctx context.Context, tx *gorm.DB, merchantID int64) (*model.ReferralReward, error) {
	var reward model.ReferralReward
	err := conn(r.db, tx).WithContext(ctx).Where("merchant_id = ?", merchantID).First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

func (r *ReferralRepository) Create(ctx context.Context, tx *gorm.DB, reward *model.ReferralReward) error {
	return conn(r.db, tx).WithContext(ctx).Create(reward).Error
}
