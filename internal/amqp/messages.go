package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExpenseChangedMessage announces a persisted mutation. Consumers fetch the
// current state themselves; the message only says what changed.
type ExpenseChangedMessage struct {
	EventID   string    `json:"eventId"`
	ID        int64     `json:"id"`
	Operation string    `json:"operation"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage creates a message with a fresh event id, stamped
// with the current time.
func NewExpenseChangedMessage(id int64, operation, month string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		EventID:   uuid.NewString(),
		ID:        id,
		Operation: operation,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes a message published by Client.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
