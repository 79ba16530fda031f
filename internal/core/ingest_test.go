package core_test

import (
	"context"
	"testing"

	"github.com/Cypherspark/webhook-gateway/internal/core"
	"github.com/stretchr/testify/require"
)

// Signature and validation failures short-circuit before any storage access,
// so these paths run without a database.

func TestIngest_InvalidSignature(t *testing.T) {
	ing := &core.Ingestor{Secret: []byte("secret")}
	body := payload(t, nil)

	_, err := ing.Ingest(context.Background(), body, "")
	require.ErrorIs(t, err, core.ErrInvalidSignature)

	_, err = ing.Ingest(context.Background(), body, "deadbeef")
	require.ErrorIs(t, err, core.ErrInvalidSignature)

	// Signature over different bytes
	other := core.ComputeSignature([]byte("secret"), []byte("other"))
	_, err = ing.Ingest(context.Background(), body, other)
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestIngest_ValidationError(t *testing.T) {
	ing := &core.Ingestor{Secret: []byte("secret")}
	body := payload(t, map[string]any{"from": "nope"})
	sig := core.ComputeSignature([]byte("secret"), body)

	_, err := ing.Ingest(context.Background(), body, sig)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestIngest_CreatedThenDuplicate(t *testing.T) {
	s := newStore(t)
	ing := &core.Ingestor{Store: s, Secret: []byte("secret")}
	body := payload(t, nil)
	sig := core.ComputeSignature([]byte("secret"), body)

	res, err := ing.Ingest(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, "m1", res.MessageID)
	require.False(t, res.Duplicate)

	res, err = ing.Ingest(context.Background(), body, sig)
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	n, err := s.CountMessages(context.Background(), core.Filters{})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
