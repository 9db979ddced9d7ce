package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendhelm/internal/core"
)

// Action names the mutation that produced an ExpenseChangedMessage.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseChangedMessage tells the worker which of a user's calendar dates
// need their aggregates recomputed. Updates that move an expense carry both
// the old and the new date.
type ExpenseChangedMessage struct {
	UserID    string    `json:"user_id"`
	ExpenseID string    `json:"expense_id"`
	Action    Action    `json:"action"`
	Dates     []string  `json:"dates"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseChangedMessage(userID, expenseID string, action Action, dates ...core.Date) *ExpenseChangedMessage {
	msg := &ExpenseChangedMessage{
		UserID:    userID,
		ExpenseID: expenseID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		s := d.String()
		if s != "" && !seen[s] {
			seen[s] = true
			msg.Dates = append(msg.Dates, s)
		}
	}
	return msg
}

// ParsedDates returns Dates as calendar dates.
func (m *ExpenseChangedMessage) ParsedDates() ([]core.Date, error) {
	out := make([]core.Date, 0, len(m.Dates))
	for _, s := range m.Dates {
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *ExpenseChangedMessage) Validate() error {
	if m.UserID == "" {
		return errors.New("missing user_id")
	}
	if len(m.Dates) == 0 {
		return errors.New("no dates to recompute")
	}
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	_, err := m.ParsedDates()
	return err
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and validates a message body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
