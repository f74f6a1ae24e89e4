package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cospese/internal/core"
)

// ExpenseEventMessage announces a committed change to an expense.
// Consumers re-read the expense from the store; the message only carries ids.
type ExpenseEventMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ExpenseID int64     `json:"expense_id"`
	AccountID int64     `json:"account_id"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(eventType string, e core.Expense, actorID int64) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ID:        uuid.NewString(),
		Type:      eventType,
		ExpenseID: e.ID,
		AccountID: e.AccountID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.ExpenseID == 0 || msg.AccountID == 0 {
		return nil, fmt.Errorf("incomplete expense event %q", msg.ID)
	}
	return &msg, nil
}
