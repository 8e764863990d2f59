package repository

import (
	"context"
	"errors"

	"couponhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) GetByUserID(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

// GetByUserIDs returns the stored preferences keyed by user id. Users without
// a row are absent.
func (r *NotificationRepository) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*model.NotificationPreference, error) {
	prefs := make(map[int64]*model.NotificationPreference, len(userIDs))
	if len(userIDs) == 0 {
		return prefs, nil
	}
	var rows []*model.NotificationPreference
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		prefs[p.UserID] = p
	}
	return prefs, nil
}

func (r *NotificationRepository) Upsert(ctx context.Context, pref *model.NotificationPreference) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "dnd_start_hour", "dnd_end_hour", "timezone", "categories", "updated_at"}),
		}).
		Create(pref).Error
}
