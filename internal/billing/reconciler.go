package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/densematrix/idea-validator/internal/entitlement"
)

// EventCheckoutCompleted is the provider event type that settles a checkout.
const EventCheckoutCompleted = "checkout.completed"

// ErrInvalidEvent is returned for payloads that are not valid JSON envelopes.
var ErrInvalidEvent = errors.New("invalid webhook event payload")

// Event is the provider's webhook envelope.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the completion details. RequestID echoes the local
// checkout id passed at session creation; ID is the provider's order id.
type EventData struct {
	RequestID string `json:"request_id"`
	ID        string `json:"id"`
}

// Outcome statuses. Ignored outcomes are successes from the delivery
// mechanism's point of view so at-least-once redelivery stops.
const (
	OutcomeSuccess = "success"
	OutcomeIgnored = "ignored"
)

// Outcome describes how an event was reconciled.
type Outcome struct {
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	TokensAdded int    `json:"tokens_added"`

	// Settlement details for metrics, populated on success only.
	ProductSKU  string `json:"-"`
	AmountCents int64  `json:"-"`
}

// TxRunner executes fn as one atomic unit. The postgres wiring passes
// pg.RunInTx so the status flip and the grant commit together; the in-memory
// wiring runs fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NoTx runs fn without transactional scope.
func NoTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Reconciler matches provider completion events to pending checkout
// transactions and grants tokens exactly once per checkout.
type Reconciler struct {
	repo    TransactionRepository
	engine  *entitlement.Engine
	catalog *Catalog
	inTx    TxRunner
	log     *slog.Logger
}

func NewReconciler(repo TransactionRepository, engine *entitlement.Engine, catalog *Catalog, inTx TxRunner, log *slog.Logger) *Reconciler {
	if inTx == nil {
		inTx = NoTx
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{repo: repo, engine: engine, catalog: catalog, inTx: inTx, log: log}
}

// HandleEvent reconciles one raw webhook payload. The caller has already
// authenticated the payload. Unknown, duplicate, and unrecognized events
// return ignored outcomes rather than errors so the provider's redelivery
// loop settles.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte) (Outcome, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if event.Type != EventCheckoutCompleted {
		return Outcome{Status: OutcomeIgnored, Reason: "unhandled event: " + event.Type}, nil
	}
	if event.Data.RequestID == "" {
		return Outcome{Status: OutcomeIgnored, Reason: "no request_id"}, nil
	}

	var outcome Outcome
	err := r.inTx(ctx, func(ctx context.Context) error {
		tx, err := r.repo.CompletePending(ctx, event.Data.RequestID, Completion{
			ExternalOrderID: event.Data.ID,
			RawPayload:      json.RawMessage(payload),
			CompletedAt:     time.Now().UTC(),
		})
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			outcome = Outcome{Status: OutcomeIgnored, Reason: "transaction not found"}
			return nil
		case errors.Is(err, ErrNotPending):
			outcome = Outcome{Status: OutcomeIgnored, Reason: "already processed"}
			return nil
		case err != nil:
			return err
		}

		product, err := r.catalog.Product(tx.ProductSKU)
		if err != nil {
			// A completed checkout for a SKU no longer in the catalog settles
			// the row but cannot grant tokens.
			r.log.ErrorContext(ctx, "completed checkout references unknown product",
				"checkout_id", tx.CheckoutID,
				"product_sku", tx.ProductSKU,
			)
			outcome = Outcome{Status: OutcomeSuccess, TokensAdded: 0, ProductSKU: tx.ProductSKU, AmountCents: tx.AmountCents}
			return nil
		}

		if _, err := r.engine.Grant(ctx, tx.DeviceID, product.Tokens, tx.ID.String(), tx.ProductSKU); err != nil {
			return err
		}

		outcome = Outcome{
			Status:      OutcomeSuccess,
			TokensAdded: product.Tokens,
			ProductSKU:  tx.ProductSKU,
			AmountCents: tx.AmountCents,
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if outcome.Status == OutcomeSuccess {
		r.log.InfoContext(ctx, "checkout completed",
			"checkout_id", event.Data.RequestID,
			"tokens_added", outcome.TokensAdded,
		)
	} else {
		r.log.InfoContext(ctx, "webhook event ignored",
			"reason", outcome.Reason,
			"event_type", event.Type,
		)
	}
	return outcome, nil
}
