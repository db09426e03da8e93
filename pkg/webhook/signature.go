// Package webhook implements the message authenticity scheme used by the
// payment provider: a hex-encoded HMAC-SHA256 of the raw request body under a
// shared secret, carried in a single header.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates a missing secret or signature.
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	// ErrInvalidPayload indicates an empty or unusable payload.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrSignatureMismatch indicates the payload was not signed with the shared secret.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
)

// Sign computes the hex HMAC-SHA256 signature of the payload. Used by tests
// and by tooling that replays provider events against a local instance.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify validates the signature over the raw payload using a constant-time
// comparison so verification latency does not leak signature prefixes.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidConfiguration)
	}

	expected, err := Sign(secret, payload)
	if err != nil {
		return err
	}

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
