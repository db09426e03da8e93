package entitlement

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Find when no record exists for the device.
	ErrNotFound = errors.New("entitlement record not found")
	// ErrNoCredits is returned by Consume when neither trial nor paid tokens remain.
	ErrNoCredits = errors.New("no generation credits remaining")
	// ErrInvalidQuantity is returned by Grant for non-positive token quantities.
	ErrInvalidQuantity = errors.New("grant quantity must be positive")
)

// Repository persists entitlement records. The engine composes Find and
// Create explicitly; implementations do not embed get-or-create fallbacks.
type Repository interface {
	// Find returns the record for a device or ErrNotFound.
	Find(ctx context.Context, deviceID string) (*Record, error)
	// Create inserts a zeroed record for the device and returns it. If a
	// concurrent caller created the record first, the existing one is returned.
	Create(ctx context.Context, deviceID string) (*Record, error)
	// Update persists counter and trace mutations for an existing record.
	Update(ctx context.Context, rec *Record) error
}
