package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the lowercase hex HMAC-SHA256 of the exact raw
// body bytes, keyed with the shared secret.
func ComputeSignature(secret, rawBody []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a provided hex signature against the expected one
// in constant time. Empty or malformed signatures simply fail the compare.
func VerifySignature(secret, rawBody []byte, provided string) bool {
	if provided == "" {
		return false
	}
	expected := ComputeSignature(secret, rawBody)
	return hmac.Equal([]byte(expected), []byte(provided))
}
