package service

import (
	"context"
	"fmt"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CategoryWallet       = "wallet"
	CategorySubscription = "subscription"
	CategoryPromotion    = "promotion"
	CategorySystem       = "system"
)

type NotificationService struct {
	db       *gorm.DB
	cfg      *config.Config
	logger   *logger.Logger
	prefRepo *repository.NotificationRepository
	userRepo *repository.UserRepository
	outbox   *repository.OutboxRepository
	now      func() time.Time
}

func NewNotificationService(db *gorm.DB, cfg *config.Config, log *logger.Logger) *NotificationService {
	return &NotificationService{
		db:       db,
		cfg:      cfg,
		logger:   log,
		prefRepo: repository.NewNotificationRepository(db),
		userRepo: repository.NewUserRepository(db),
		outbox:   repository.NewOutboxRepository(db),
		now:      time.Now,
	}
}

type SendRequest struct {
	UserIDs  []int64               `json:"user_ids" binding:"required,min=1"`
	Category string                `json:"category" binding:"required"`
	Title    string                `json:"title" binding:"required"`
	Body     string                `json:"body"`
	Data     map[string]interface{} `json:"data"`
}

type SendResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
}

// PushPayload is the body of a push outbox message. ChatID is set when the
// user linked a Telegram chat.
type PushPayload struct {
	UserID   int64                  `json:"user_id"`
	ChatID   string                 `json:"chat_id,omitempty"`
	Category string                 `json:"category"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Send queues one push per user that accepts the category and is outside
// their quiet hours. Users without a preference row accept everything.
func (s *NotificationService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.UserIDs) == 0 {
		return nil, invalidParam("user_ids is empty")
	}
	if req.Category == "" || req.Title == "" {
		return nil, invalidParam("category and title are required")
	}

	ids := dedupe(req.UserIDs)
	prefs, err := s.prefRepo.GetByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	now := s.now()
	result := &SendResult{}
	var messages []*model.OutboxMessage
	for _, id := range ids {
		if !deliverable(prefs[id], req.Category, now) {
			result.Skipped++
			continue
		}

		payload := PushPayload{
			UserID:   id,
			Category: req.Category,
			Title:    req.Title,
			Body:     req.Body,
			Data:     req.Data,
		}
		if u, ok := users[id]; ok {
			payload.ChatID = u.TelegramChatID
		}
		msg, err := newOutboxMessage(s.cfg.Kafka.Topic.Push, model.EventPushNotification, uuid.NewString(), payload)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if len(messages) > 0 {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, msg := range messages {
				if err := s.outbox.Create(ctx, tx, msg); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("queue pushes: %w", err)
		}
	}
	result.Sent = len(messages)

	s.logger.Infow("notifications queued", "category", req.Category, "sent", result.Sent, "skipped", result.Skipped)
	return result, nil
}

func deliverable(pref *model.NotificationPreference, category string, now time.Time) bool {
	if pref == nil {
		return true
	}
	if !pref.Enabled || !pref.CategoryEnabled(category) {
		return false
	}
	return !pref.InQuietHours(now)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type PreferencesRequest struct {
	Enabled      bool            `json:"enabled"`
	DNDStartHour *int            `json:"dnd_start_hour"`
	DNDEndHour   *int            `json:"dnd_end_hour"`
	Timezone     string          `json:"timezone"`
	Categories   map[string]bool `json:"categories"`
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID int64, req PreferencesRequest) (*model.NotificationPreference, error) {
	if (req.DNDStartHour == nil) != (req.DNDEndHour == nil) {
		return nil, invalidParam("dnd_start_hour and dnd_end_hour must be set together")
	}
	for _, h := range []*int{req.DNDStartHour, req.DNDEndHour} {
		if h != nil && (*h < 0 || *h > 23) {
			return nil, invalidParam("dnd hours must be within 0-23")
		}
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, invalidParam("unknown timezone %q", req.Timezone)
		}
	}

	categories := datatypes.JSONMap{}
	for k, v := range req.Categories {
		categories[k] = v
	}
	pref := &model.NotificationPreference{
		UserID:       userID,
		Enabled:      req.Enabled,
		DNDStartHour: req.DNDStartHour,
		DNDEndHour:   req.DNDEndHour,
		Timezone:     req.Timezone,
		Categories:   categories,
	}
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return s.prefRepo.GetByUserID(ctx, userID)
}

func (s *NotificationService) GetPreferences(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	pref, err := s.prefRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = &model.NotificationPreference{UserID: userID, Enabled: true, Categories: datatypes.JSONMap{}}
	}
	return pref, nil
}
