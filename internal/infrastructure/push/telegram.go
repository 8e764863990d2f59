package push

import (
	"context"
	"fmt"

	"couponhub/pkg/logger"

	"github.com/go-telegram/bot"
)

// Sender delivers one push message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

type TelegramSender struct {
	logger *logger.Logger
	bot    *bot.Bot
}

func NewTelegramSender(log *logger.Logger, token string) (*TelegramSender, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{logger: log, bot: b}, nil
}

func (t *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("telegram send to %s: %w", chatID, err)
	}
	t.logger.Debug("telegram push sent to ", chatID)
	return nil
}

// NopSender drops every message. Used when no bot token is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string) error { return nil }
