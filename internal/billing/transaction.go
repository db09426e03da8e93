package billing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a checkout transaction. Transitions are
// monotonic: pending may become completed or failed; both are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction records one checkout session. The checkout id is generated
// locally before the provider session exists and correlates the asynchronous
// completion event back to this row.
type Transaction struct {
	ID          uuid.UUID
	CheckoutID  string
	DeviceID    string
	ProductSKU  string
	AmountCents int64
	Currency    string
	Status      Status

	// Set when the completion event settles.
	ExternalOrderID string
	RawPayload      json.RawMessage // audit snapshot of the settling event

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// IsPending reports whether the transaction can still transition.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}
