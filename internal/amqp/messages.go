package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeMessage announces a successful mutation of one record.
// Consumers fetch the record itself from the store.
type ChangeMessage struct {
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid change message")

func NewChangeMessage(resource, operation, id, userID string) *ChangeMessage {
	return &ChangeMessage{
		Resource:  resource,
		Operation: operation,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message. Resource and operation are required.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Resource == "" || msg.Operation == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}

// RoutingKey routes messages per resource, e.g. "transactions.create".
func (m *ChangeMessage) RoutingKey() string {
	return m.Resource + "." + m.Operation
}
