package service

import (
	"encoding/json"
	"fmt"

	"couponhub/internal/model"
)

func newOutboxMessage(topic, eventType, key string, payload interface{}) (*model.OutboxMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		EventType:  eventType,
		Payload:    string(b),
		Status:     model.OutboxStatusPending,
	}, nil
}
