package core_test

import (
	"testing"

	"github.com/Cypherspark/webhook-gateway/internal/core"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"message_id":"m1","from":"+491701234567","to":"+491707654321","ts":"2024-01-01T00:00:00Z"}`)

	sig := core.ComputeSignature(secret, body)
	require.True(t, core.VerifySignature(secret, body, sig))
}

func TestVerifySignature_FlippedBodyByte(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"message_id":"m1"}`)
	sig := core.ComputeSignature(secret, body)

	mutated := append([]byte(nil), body...)
	mutated[0] ^= 0xff
	require.False(t, core.VerifySignature(secret, mutated, sig))
}

func TestVerifySignature_FlippedSignatureByte(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"message_id":"m1"}`)
	sig := []byte(core.ComputeSignature(secret, body))
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	require.False(t, core.VerifySignature(secret, body, string(sig)))
}

func TestVerifySignature_MissingOrMalformed(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{}`)
	require.False(t, core.VerifySignature(secret, body, ""))
	require.False(t, core.VerifySignature(secret, body, "not-hex"))
	require.False(t, core.VerifySignature(secret, body, "deadbeef"))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"message_id":"m1"}`)
	sig := core.ComputeSignature([]byte("right"), body)
	require.False(t, core.VerifySignature([]byte("wrong"), body, sig))
}
