package entitlement

import (
	"context"
	"errors"
	"log/slog"
)

// Engine applies the entitlement rules: a device's single free trial is
// always consumed before any paid token, so purchased balance never covers
// what the trial would have.
type Engine struct {
	repo Repository
	log  *slog.Logger
}

func NewEngine(repo Repository, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{repo: repo, log: log}
}

// Check reports whether the device may generate and on what basis. It is a
// pure decision: no counters move. Check and Consume are deliberately two
// separate steps; under concurrent requests the second Consume falls through
// to the next allowance or fails.
func (e *Engine) Check(ctx context.Context, deviceID string) (bool, Basis, error) {
	rec, err := e.getOrCreate(ctx, deviceID)
	if err != nil {
		return false, BasisNone, err
	}

	if !rec.FreeTrialUsed {
		return true, BasisFreeTrial, nil
	}
	if rec.TokensRemaining() > 0 {
		return true, BasisPaid, nil
	}
	return false, BasisNone, nil
}

// Consume spends one generation credit, trial first, then paid. It returns
// the basis actually consumed, or ErrNoCredits without mutating anything.
func (e *Engine) Consume(ctx context.Context, deviceID string) (Basis, error) {
	rec, err := e.getOrCreate(ctx, deviceID)
	if err != nil {
		return BasisNone, err
	}

	if !rec.FreeTrialUsed {
		rec.FreeTrialUsed = true
		if err := e.repo.Update(ctx, rec); err != nil {
			return BasisNone, err
		}
		e.log.InfoContext(ctx, "free trial consumed", "device_id", deviceID)
		return BasisFreeTrial, nil
	}

	if rec.TokensRemaining() > 0 {
		rec.TokensUsed++
		if err := e.repo.Update(ctx, rec); err != nil {
			return BasisNone, err
		}
		e.log.InfoContext(ctx, "paid token consumed",
			"device_id", deviceID,
			"tokens_remaining", rec.TokensRemaining(),
		)
		return BasisPaid, nil
	}

	return BasisNone, ErrNoCredits
}

// Grant adds purchased tokens to the device balance and records the payment
// reference for traceability. Grant is not idempotent; callers reconciling
// at-least-once events must guard against redelivery themselves.
func (e *Engine) Grant(ctx context.Context, deviceID string, quantity int, paymentRef, productSKU string) (*Record, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	rec, err := e.getOrCreate(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	rec.TokensTotal += quantity
	rec.LastPaymentID = paymentRef
	rec.LastProductSKU = productSKU
	if err := e.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "tokens granted",
		"device_id", deviceID,
		"quantity", quantity,
		"product_sku", productSKU,
	)
	return rec, nil
}

// Status returns the device's balance read model.
func (e *Engine) Status(ctx context.Context, deviceID string) (Status, error) {
	rec, err := e.getOrCreate(ctx, deviceID)
	if err != nil {
		return Status{}, err
	}

	return Status{
		FreeTrialUsed:   rec.FreeTrialUsed,
		TokensTotal:     rec.TokensTotal,
		TokensUsed:      rec.TokensUsed,
		TokensRemaining: rec.TokensRemaining(),
		CanGenerate:     rec.CanGenerate(),
	}, nil
}

// getOrCreate lazily provisions a zeroed record on first reference.
func (e *Engine) getOrCreate(ctx context.Context, deviceID string) (*Record, error) {
	rec, err := e.repo.Find(ctx, deviceID)
	if errors.Is(err, ErrNotFound) {
		return e.repo.Create(ctx, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
