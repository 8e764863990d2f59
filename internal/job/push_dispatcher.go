package job

import (
	"context"
	"encoding/json"
	"fmt"

	"couponhub/internal/infrastructure/push"
	"couponhub/internal/model"
	"couponhub/internal/service"
)

// PushDispatcher delivers published push messages to users that linked a
// Telegram chat.
type PushDispatcher struct {
	sender push.Sender
}

func NewPushDispatcher(sender push.Sender) *PushDispatcher {
	return &PushDispatcher{sender: sender}
}

func (d *PushDispatcher) Dispatch(ctx context.Context, msg *model.OutboxMessage) error {
	var payload service.PushPayload
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		return fmt.Errorf("decode push payload: %w", err)
	}
	if payload.ChatID == "" {
		return nil
	}

	text := payload.Title
	if payload.Body != "" {
		text += "\n\n" + payload.Body
	}
	return d.sender.Send(ctx, payload.ChatID, text)
}
