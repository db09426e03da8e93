package entitlement_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densematrix/idea-validator/internal/entitlement"
)

func newEngine() (*entitlement.Engine, *entitlement.MemoryRepository) {
	repo := entitlement.NewMemoryRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return entitlement.NewEngine(repo, log), repo
}

func TestEngine_Check(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fresh device gets free trial", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		allowed, basis, err := engine.Check(ctx, "device-1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, entitlement.BasisFreeTrial, basis)
	})

	t.Run("check does not mutate", func(t *testing.T) {
		t.Parallel()
		engine, repo := newEngine()

		_, _, err := engine.Check(ctx, "device-2")
		require.NoError(t, err)
		_, _, err = engine.Check(ctx, "device-2")
		require.NoError(t, err)

		rec, err := repo.Find(ctx, "device-2")
		require.NoError(t, err)
		assert.False(t, rec.FreeTrialUsed)
		assert.Zero(t, rec.TokensUsed)
	})

	t.Run("paid basis after trial with balance", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		_, err := engine.Consume(ctx, "device-3")
		require.NoError(t, err)
		_, err = engine.Grant(ctx, "device-3", 5, "pay-1", "validator_3")
		require.NoError(t, err)

		allowed, basis, err := engine.Check(ctx, "device-3")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, entitlement.BasisPaid, basis)
	})

	t.Run("denied when exhausted", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		_, err := engine.Consume(ctx, "device-4")
		require.NoError(t, err)

		allowed, basis, err := engine.Check(ctx, "device-4")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, entitlement.BasisNone, basis)
	})
}

func TestEngine_Consume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("trial consumed before paid tokens", func(t *testing.T) {
		t.Parallel()
		engine, repo := newEngine()

		_, err := engine.Grant(ctx, "device-1", 2, "pay-1", "validator_3")
		require.NoError(t, err)

		basis, err := engine.Consume(ctx, "device-1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.BasisFreeTrial, basis)

		rec, err := repo.Find(ctx, "device-1")
		require.NoError(t, err)
		assert.True(t, rec.FreeTrialUsed)
		assert.Equal(t, 2, rec.TokensRemaining(), "paid balance untouched by trial consumption")
	})

	t.Run("exhaustion fails without mutation", func(t *testing.T) {
		t.Parallel()
		engine, repo := newEngine()

		_, err := engine.Consume(ctx, "device-2")
		require.NoError(t, err)

		_, err = engine.Consume(ctx, "device-2")
		assert.ErrorIs(t, err, entitlement.ErrNoCredits)

		rec, err := repo.Find(ctx, "device-2")
		require.NoError(t, err)
		assert.Zero(t, rec.TokensUsed)
		assert.Zero(t, rec.TokensTotal)
	})

	t.Run("granting N tokens allows exactly N paid consumes", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		_, err := engine.Consume(ctx, "device-3") // burn the trial
		require.NoError(t, err)
		_, err = engine.Grant(ctx, "device-3", 3, "pay-1", "validator_3")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			basis, err := engine.Consume(ctx, "device-3")
			require.NoError(t, err, "consume %d", i+1)
			assert.Equal(t, entitlement.BasisPaid, basis)
		}

		status, err := engine.Status(ctx, "device-3")
		require.NoError(t, err)
		assert.Zero(t, status.TokensRemaining)

		_, err = engine.Consume(ctx, "device-3")
		assert.ErrorIs(t, err, entitlement.ErrNoCredits)
	})
}

func TestEngine_Grant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("accumulates and records trace", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		rec, err := engine.Grant(ctx, "device-1", 3, "pay-1", "validator_3")
		require.NoError(t, err)
		assert.Equal(t, 3, rec.TokensTotal)

		rec, err = engine.Grant(ctx, "device-1", 10, "pay-2", "validator_10")
		require.NoError(t, err)
		assert.Equal(t, 13, rec.TokensTotal)
		assert.Equal(t, "pay-2", rec.LastPaymentID)
		assert.Equal(t, "validator_10", rec.LastProductSKU)
	})

	t.Run("grant is not idempotent", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		_, err := engine.Grant(ctx, "device-2", 3, "pay-1", "validator_3")
		require.NoError(t, err)
		rec, err := engine.Grant(ctx, "device-2", 3, "pay-1", "validator_3")
		require.NoError(t, err)
		assert.Equal(t, 6, rec.TokensTotal)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		_, err := engine.Grant(ctx, "device-3", 0, "pay-1", "validator_3")
		assert.ErrorIs(t, err, entitlement.ErrInvalidQuantity)
		_, err = engine.Grant(ctx, "device-3", -1, "pay-1", "validator_3")
		assert.ErrorIs(t, err, entitlement.ErrInvalidQuantity)
	})
}

func TestEngine_Status(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("new device scenario", func(t *testing.T) {
		t.Parallel()
		engine, _ := newEngine()

		allowed, basis, err := engine.Check(ctx, "device-1")
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, entitlement.BasisFreeTrial, basis)

		_, err = engine.Consume(ctx, "device-1")
		require.NoError(t, err)

		status, err := engine.Status(ctx, "device-1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.Status{
			FreeTrialUsed:   true,
			TokensTotal:     0,
			TokensUsed:      0,
			TokensRemaining: 0,
			CanGenerate:     false,
		}, status)
	})
}

func TestMemoryRepository_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := entitlement.NewMemoryRepository()

	// Every repository must mint the record identity itself; rows are never
	// inserted without one.
	rec, err := repo.Create(ctx, "device-1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	again, err := repo.Create(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)
}

func TestRecord_TokensRemaining(t *testing.T) {
	t.Parallel()

	t.Run("clamps negative balance to zero", func(t *testing.T) {
		t.Parallel()
		rec := &entitlement.Record{TokensTotal: 2, TokensUsed: 5}
		assert.Equal(t, 0, rec.TokensRemaining())
		assert.False(t, rec.CanGenerate() && rec.FreeTrialUsed)
	})

	t.Run("normal balance", func(t *testing.T) {
		t.Parallel()
		rec := &entitlement.Record{TokensTotal: 5, TokensUsed: 2, FreeTrialUsed: true}
		assert.Equal(t, 3, rec.TokensRemaining())
		assert.True(t, rec.CanGenerate())
	})
}
