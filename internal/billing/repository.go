package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrTransactionNotFound is returned when no transaction matches a checkout id.
	ErrTransactionNotFound = errors.New("checkout transaction not found")
	// ErrNotPending is returned by CompletePending when the transaction has
	// already left the pending state.
	ErrNotPending = errors.New("checkout transaction is not pending")
)

// Completion carries the settling event's data onto the ledger row.
type Completion struct {
	ExternalOrderID string
	RawPayload      json.RawMessage
	CompletedAt     time.Time
}

// TransactionRepository persists the checkout ledger.
type TransactionRepository interface {
	// Create inserts a new pending transaction.
	Create(ctx context.Context, tx *Transaction) error
	// FindByCheckoutID returns the transaction or ErrTransactionNotFound.
	FindByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, error)
	// CompletePending flips pending to completed and stamps the completion
	// data in one compare-and-set. It returns ErrTransactionNotFound for an
	// unknown checkout id and ErrNotPending when the row already settled, so
	// concurrent redeliveries produce exactly one successful transition.
	CompletePending(ctx context.Context, checkoutID string, completion Completion) (*Transaction, error)
}
