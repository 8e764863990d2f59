package job

import (
	"context"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/logger"

	"gorm.io/gorm"
)

// Publisher sends one message to a topic.
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender publishes pending outbox rows. Rows are written in the same
// transaction as the change they describe, so delivery is at-least-once.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	logger     *logger.Logger
	publisher  Publisher
	dispatcher *PushDispatcher
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, log *logger.Logger, publisher Publisher, dispatcher *PushDispatcher) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		logger:     log.With("job", "outbox_sender"),
		publisher:  publisher,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
		interval:   500 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending sends one batch and returns how many messages were sent.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Errorw("load pending messages", "err", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

// Requeue moves FAILED rows back to PENDING, e.g. after a broker outage.
func (s *OutboxSender) Requeue(ctx context.Context) (int64, error) {
	n, err := s.outboxRepo.Requeue(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("requeued failed messages", "count", n)
	return n, nil
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Errorw("mark message sent", "id", msg.ID, "err", updateErr)
		}
		if msg.EventType == model.EventPushNotification && s.dispatcher != nil {
			if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
				s.logger.Warnw("push delivery failed", "id", msg.ID, "err", err)
			}
		}
		return true
	}

	s.logger.Warnw("publish failed", "id", msg.ID, "topic", msg.Topic, "err", err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Errorw("mark message failed", "id", msg.ID, "err", err)
		} else {
			s.logger.Errorw("message gave up after max retries", "id", msg.ID, "retries", msg.RetryCount+1)
		}
		return false
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Errorw("increment retry count", "id", msg.ID, "err", err)
	}
	return false
}
