package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event kinds.
const (
	EventTransactionAdded   = "transaction_added"
	EventTransactionDeleted = "transaction_deleted"
	EventBudgetChanged      = "budget_changed"
	EventWalletExpense      = "wallet_expense"
)

// LedgerEvent signals that a user's ledger changed. It carries only
// identifiers; the worker reloads the full state from storage before
// evaluating.
type LedgerEvent struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	WalletID  string    `json:"wallet_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event for the given kind and user.
func NewLedgerEvent(kind, userID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewWalletEvent creates a wallet-scoped event.
func NewWalletEvent(walletID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:      EventWalletExpense,
		WalletID:  walletID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON creates an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
