package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Basis identifies which allowance an eligibility decision rests on.
type Basis string

const (
	BasisFreeTrial Basis = "free_trial"
	BasisPaid      Basis = "paid"
	BasisNone      Basis = "none"
)

// Record tracks the generation allowance for a single device. The device id
// is a client-asserted opaque string; a device that clears it simply starts a
// fresh record.
type Record struct {
	ID            uuid.UUID
	DeviceID      string
	TokensTotal   int
	TokensUsed    int
	FreeTrialUsed bool

	// Trace of the most recent grant. Not authoritative; the checkout ledger
	// holds the full history.
	LastPaymentID  string
	LastProductSKU string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokensRemaining never reports a negative balance, even if counters were
// forced into an inconsistent state out of band.
func (r *Record) TokensRemaining() int {
	remaining := r.TokensTotal - r.TokensUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanGenerate reports whether the device has any allowance left, trial or paid.
func (r *Record) CanGenerate() bool {
	return !r.FreeTrialUsed || r.TokensRemaining() > 0
}

// Status is the read model returned to clients.
type Status struct {
	FreeTrialUsed   bool `json:"free_trial_used"`
	TokensTotal     int  `json:"tokens_total"`
	TokensUsed      int  `json:"tokens_used"`
	TokensRemaining int  `json:"tokens_remaining"`
	CanGenerate     bool `json:"can_generate"`
}
