package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densematrix/idea-validator/internal/billing"
	"github.com/densematrix/idea-validator/internal/entitlement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reconcilerFixture struct {
	repo       *billing.MemoryTransactionRepository
	entRepo    *entitlement.MemoryRepository
	engine     *entitlement.Engine
	reconciler *billing.Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	repo := billing.NewMemoryTransactionRepository()
	entRepo := entitlement.NewMemoryRepository()
	engine := entitlement.NewEngine(entRepo, discardLogger())
	catalog := billing.NewCatalog(nil)
	return &reconcilerFixture{
		repo:       repo,
		entRepo:    entRepo,
		engine:     engine,
		reconciler: billing.NewReconciler(repo, engine, catalog, billing.NoTx, discardLogger()),
	}
}

func (f *reconcilerFixture) pendingTransaction(t *testing.T, checkoutID, deviceID, sku string) {
	t.Helper()
	err := f.repo.Create(context.Background(), &billing.Transaction{
		ID:          uuid.New(),
		CheckoutID:  checkoutID,
		DeviceID:    deviceID,
		ProductSKU:  sku,
		AmountCents: 499,
		Currency:    "USD",
		Status:      billing.StatusPending,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func completionEvent(checkoutID string) []byte {
	return []byte(fmt.Sprintf(`{"type":"checkout.completed","data":{"request_id":"%s","id":"ord_123"}}`, checkoutID))
}

func TestReconciler_HandleEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first delivery grants tokens and completes", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pendingTransaction(t, "chk-1", "device-1", "validator_3")

		outcome, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-1"))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeSuccess, outcome.Status)
		assert.Equal(t, 3, outcome.TokensAdded)
		assert.Equal(t, int64(499), outcome.AmountCents)

		tx, err := f.repo.FindByCheckoutID(ctx, "chk-1")
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCompleted, tx.Status)
		assert.Equal(t, "ord_123", tx.ExternalOrderID)
		require.NotNil(t, tx.CompletedAt)
		assert.JSONEq(t, string(completionEvent("chk-1")), string(tx.RawPayload))

		status, err := f.engine.Status(ctx, "device-1")
		require.NoError(t, err)
		assert.Equal(t, 3, status.TokensTotal)
	})

	t.Run("redelivery grants exactly once", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pendingTransaction(t, "chk-2", "device-2", "validator_10")

		first, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-2"))
		require.NoError(t, err)
		require.Equal(t, billing.OutcomeSuccess, first.Status)

		second, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-2"))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, second.Status)
		assert.Equal(t, "already processed", second.Reason)

		tx, err := f.repo.FindByCheckoutID(ctx, "chk-2")
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCompleted, tx.Status)

		status, err := f.engine.Status(ctx, "device-2")
		require.NoError(t, err)
		assert.Equal(t, 10, status.TokensTotal)
	})

	t.Run("concurrent deliveries grant exactly once", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pendingTransaction(t, "chk-3", "device-3", "validator_3")

		const deliveries = 8
		outcomes := make([]billing.Outcome, deliveries)
		errs := make([]error, deliveries)
		var wg sync.WaitGroup
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i], errs[i] = f.reconciler.HandleEvent(ctx, completionEvent("chk-3"))
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		successes := 0
		for _, o := range outcomes {
			if o.Status == billing.OutcomeSuccess {
				successes++
			}
		}
		assert.Equal(t, 1, successes)

		status, err := f.engine.Status(ctx, "device-3")
		require.NoError(t, err)
		assert.Equal(t, 3, status.TokensTotal)
	})

	t.Run("retired sku settles with an explicit zero count", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pendingTransaction(t, "chk-retired", "device-8", "validator_legacy")

		outcome, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-retired"))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeSuccess, outcome.Status)
		assert.Zero(t, outcome.TokensAdded)

		// The zero must survive serialization so clients can tell "granted
		// nothing" apart from a truncated response.
		raw, err := json.Marshal(outcome)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"tokens_added":0`)

		tx, err := f.repo.FindByCheckoutID(ctx, "chk-retired")
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCompleted, tx.Status)

		_, err = f.entRepo.Find(ctx, "device-8")
		assert.ErrorIs(t, err, entitlement.ErrNotFound)
	})

	t.Run("unknown checkout id is ignored without grants", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		outcome, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-missing"))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, outcome.Status)
		assert.Equal(t, "transaction not found", outcome.Reason)

		// No entitlement record may appear as a side effect.
		_, err = f.entRepo.Find(ctx, "device-1")
		assert.ErrorIs(t, err, entitlement.ErrNotFound)
	})

	t.Run("unhandled event type is ignored", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		outcome, err := f.reconciler.HandleEvent(ctx, []byte(`{"type":"checkout.expired","data":{"request_id":"chk-1"}}`))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, outcome.Status)
		assert.Equal(t, "unhandled event: checkout.expired", outcome.Reason)
	})

	t.Run("missing request_id is ignored", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		outcome, err := f.reconciler.HandleEvent(ctx, []byte(`{"type":"checkout.completed","data":{"id":"ord_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, outcome.Status)
		assert.Equal(t, "no request_id", outcome.Reason)
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		_, err := f.reconciler.HandleEvent(ctx, []byte(`{not json`))
		assert.ErrorIs(t, err, billing.ErrInvalidEvent)
	})

	t.Run("failed transaction never completes", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		err := f.repo.Create(ctx, &billing.Transaction{
			ID:         uuid.New(),
			CheckoutID: "chk-failed",
			DeviceID:   "device-9",
			ProductSKU: "validator_3",
			Status:     billing.StatusFailed,
			CreatedAt:  time.Now().UTC(),
		})
		require.NoError(t, err)

		outcome, err := f.reconciler.HandleEvent(ctx, completionEvent("chk-failed"))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, outcome.Status)
		assert.Equal(t, "already processed", outcome.Reason)

		tx, err := f.repo.FindByCheckoutID(ctx, "chk-failed")
		require.NoError(t, err)
		assert.Equal(t, billing.StatusFailed, tx.Status)
	})
}

func TestEventEnvelope(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"checkout.completed","data":{"request_id":"chk-1","id":"ord_9","extra":"ignored"}}`)
	var event billing.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, billing.EventCheckoutCompleted, event.Type)
	assert.Equal(t, "chk-1", event.Data.RequestID)
	assert.Equal(t, "ord_9", event.Data.ID)
}
