package billing

import (
	"context"
	"sync"
)

// MemoryTransactionRepository is an in-memory ledger used in tests and local
// runs. The mutex makes CompletePending an atomic compare-and-set, matching
// the exactly-once guarantee of the postgres implementation.
type MemoryTransactionRepository struct {
	mu           sync.Mutex
	transactions map[string]Transaction // keyed by checkout id
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{transactions: make(map[string]Transaction)}
}

func (m *MemoryTransactionRepository) Create(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions[tx.CheckoutID] = *tx
	return nil
}

func (m *MemoryTransactionRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[checkoutID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (m *MemoryTransactionRepository) CompletePending(ctx context.Context, checkoutID string, completion Completion) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[checkoutID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if tx.Status != StatusPending {
		return nil, ErrNotPending
	}

	tx.Status = StatusCompleted
	tx.ExternalOrderID = completion.ExternalOrderID
	tx.RawPayload = completion.RawPayload
	completedAt := completion.CompletedAt
	tx.CompletedAt = &completedAt
	m.transactions[checkoutID] = tx
	return &tx, nil
}
