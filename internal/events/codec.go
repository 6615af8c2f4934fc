package events

import (
	"encoding/json"
	"fmt"

	"notes-sync-service/internal/model"
)

// Encode сериализует событие в канонический UTF-8 JSON.
// Порядок ключей определяется порядком полей model.ChangeEvent и стабилен.
func Encode(event model.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Action, err)
	}
	return data, nil
}

// Decode разбирает событие и проверяет обязательные поля
func Decode(data []byte) (model.ChangeEvent, error) {
	var event model.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if !event.Action.Valid() {
		return model.ChangeEvent{}, fmt.Errorf("decode event: unknown action %q", event.Action)
	}
	if event.Note.ID == "" {
		return model.ChangeEvent{}, fmt.Errorf("decode event: %s event without note id", event.Action)
	}
	return event, nil
}
