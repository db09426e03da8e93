package webhook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densematrix/idea-validator/pkg/webhook"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	payload := []byte(`{"type":"checkout.completed","data":{"request_id":"abc"}}`)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.Sign(secret, payload)
		require.NoError(t, err)
		assert.NoError(t, webhook.Verify(secret, payload, sig))
	})

	t.Run("signature is deterministic hex", func(t *testing.T) {
		t.Parallel()
		sig1, err := webhook.Sign(secret, payload)
		require.NoError(t, err)
		sig2, err := webhook.Sign(secret, payload)
		require.NoError(t, err)
		assert.Equal(t, sig1, sig2)
		assert.Len(t, sig1, 64) // hex-encoded SHA-256
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.Sign(secret, payload)
		require.NoError(t, err)
		err = webhook.Verify(secret, []byte(`{"type":"checkout.completed"}`), sig)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.Sign(secret, payload)
		require.NoError(t, err)
		err = webhook.Verify("other", payload, sig)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		t.Parallel()
		err := webhook.Verify(secret, payload, "")
		assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.Sign("", payload)
		assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.Sign(secret, nil)
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})
}
