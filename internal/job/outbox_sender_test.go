package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"couponhub/internal/infrastructure/mq"
	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/internal/testutil"
	"couponhub/pkg/logger"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (r *recordingSender) Send(_ context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.sent == nil {
		r.sent = make(map[string]string)
	}
	r.sent[chatID] = text
	return nil
}

func insertOutbox(t *testing.T, db *gorm.DB, eventType, payload string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: "key",
		Topic:      "couponhub.test",
		EventType:  eventType,
		Payload:    payload,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func encodePush(t *testing.T, p service.PushPayload) string {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return string(b)
}

func reload(t *testing.T, db *gorm.DB, id int64) *model.OutboxMessage {
	t.Helper()
	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg, id).Error)
	return &msg
}

func TestOutboxSender(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.TestConfig()
	cfg.Business.MaxRetryCount = 2
	ctx := context.Background()

	sent := insertOutbox(t, db, model.EventLedgerPosted, `{"amount":100}`)
	flaky := insertOutbox(t, db, model.EventLedgerPosted, `{"amount":200}`)

	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	sender := NewOutboxSender(db, cfg, logger.NewNop(), mq.NewProducerFrom(producer), nil)

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))
	assert.Equal(t, 1, sender.ProcessPending(ctx))

	assert.Equal(t, model.OutboxStatusSent, reload(t, db, sent.ID).Status)
	retried := reload(t, db, flaky.ID)
	assert.Equal(t, model.OutboxStatusPending, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)

	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))
	assert.Equal(t, 0, sender.ProcessPending(ctx))

	failed := reload(t, db, flaky.ID)
	assert.Equal(t, model.OutboxStatusFailed, failed.Status)
	assert.Equal(t, 2, failed.RetryCount)

	// nothing left to send
	assert.Equal(t, 0, sender.ProcessPending(ctx))

	requeued, err := sender.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	producer.ExpectSendMessageAndSucceed()
	assert.Equal(t, 1, sender.ProcessPending(ctx))
	assert.Equal(t, model.OutboxStatusSent, reload(t, db, flaky.ID).Status)
}

func TestOutboxSenderDeliversPush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.TestConfig()
	ctx := context.Background()

	insertOutbox(t, db, model.EventPushNotification, encodePush(t, service.PushPayload{
		UserID: 1, ChatID: "42", Category: "system", Title: "Withdrawal rejected", Body: "Funds returned",
	}))
	insertOutbox(t, db, model.EventPushNotification, encodePush(t, service.PushPayload{
		UserID: 2, Category: "system", Title: "No chat linked",
	}))

	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	push := &recordingSender{}
	sender := NewOutboxSender(db, cfg, logger.NewNop(), mq.NewProducerFrom(producer), NewPushDispatcher(push))

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	assert.Equal(t, 2, sender.ProcessPending(ctx))

	require.Len(t, push.sent, 1)
	assert.Equal(t, "Withdrawal rejected\n\nFunds returned", push.sent["42"])
}

func TestPushDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("title only", func(t *testing.T) {
		push := &recordingSender{}
		err := NewPushDispatcher(push).Dispatch(ctx, &model.OutboxMessage{Payload: `{"chat_id":"7","title":"Trial ends soon"}`})
		require.NoError(t, err)
		assert.Equal(t, "Trial ends soon", push.sent["7"])
	})

	t.Run("bad payload", func(t *testing.T) {
		err := NewPushDispatcher(&recordingSender{}).Dispatch(ctx, &model.OutboxMessage{Payload: "not json"})
		assert.Error(t, err)
	})

	t.Run("sender error is returned", func(t *testing.T) {
		push := &recordingSender{err: errors.New("chat not found")}
		err := NewPushDispatcher(push).Dispatch(ctx, &model.OutboxMessage{Payload: `{"chat_id":"7","title":"x"}`})
		assert.EqualError(t, err, "chat not found")
	})
}
