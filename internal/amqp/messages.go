package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpenseRecordedMessage announces a stored expense. It carries only the id
// and date; consumers fetch the full record from storage.
type ExpenseRecordedMessage struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(id int64, date string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        id,
		Date:      date,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("expense.recorded message without a valid id: %d", msg.ID)
	}
	return &msg, nil
}
