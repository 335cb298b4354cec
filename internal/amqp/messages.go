package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"gastos/internal/core"
)

// MonthChangedMessage announces that a month partition was rewritten.
// The consumer reads the partition itself; the message carries no rows.
type MonthChangedMessage struct {
	Month     string    `json:"month"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthChangedMessage(month, operation string) *MonthChangedMessage {
	return &MonthChangedMessage{
		Month:     month,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

func (m *MonthChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthChangedMessageFromJSON decodes a message and checks its month.
func MonthChangedMessageFromJSON(data []byte) (*MonthChangedMessage, error) {
	var msg MonthChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.ParsedMonth(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParsedMonth returns the month the message refers to.
func (m *MonthChangedMessage) ParsedMonth() (core.Month, error) {
	month, err := core.ParseMonth(m.Month)
	if err != nil {
		return core.Month{}, fmt.Errorf("message month: %w", err)
	}
	return month, nil
}
