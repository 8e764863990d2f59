package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationPreference is a user's push settings. A user without a row
// receives everything.
type NotificationPreference struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64             `gorm:"uniqueIndex;not null" json:"user_id"`
	Enabled      bool              `gorm:"not null" json:"enabled"`
	DNDStartHour *int              `json:"dnd_start_hour,omitempty"`
	DNDEndHour   *int              `json:"dnd_end_hour,omitempty"`
	Timezone     string            `gorm:"type:varchar(64)" json:"timezone"`
	Categories   datatypes.JSONMap `json:"categories"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationPreference) TableName() string {
	return "notification_preference"
}

// CategoryEnabled reports whether the category is on. Categories absent from
// the map are on.
func (p *NotificationPreference) CategoryEnabled(category string) bool {
	if p.Categories == nil {
		return true
	}
	v, ok := p.Categories[category]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// InQuietHours reports whether the hour at t, in the user's timezone, falls in
// the do-not-disturb window. The window may wrap past midnight.
func (p *NotificationPreference) InQuietHours(t time.Time) bool {
	if p.DNDStartHour == nil || p.DNDEndHour == nil {
		return false
	}
	start, end := *p.DNDStartHour, *p.DNDEndHour
	if start == end {
		return false
	}
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			t = t.In(loc)
		}
	}
	h := t.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
