package core

import (
	"context"
	"errors"
)

var ErrInvalidSignature = errors.New("invalid_signature")

// IngestResult is the outcome of one webhook delivery.
type IngestResult struct {
	MessageID string
	Duplicate bool
}

// Ingestor sequences verification, validation and the idempotent insert for
// each inbound webhook request.
type Ingestor struct {
	Store  *Store
	Secret []byte
}

// Ingest verifies the signature over the exact raw bytes, validates the
// payload, then inserts it. A replayed message_id is not an error: the insert
// is a no-op and the result reports Duplicate. Errors are ErrInvalidSignature,
// *ValidationError, or a storage failure.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte, signature string) (IngestResult, error) {
	if !VerifySignature(i.Secret, raw, signature) {
		return IngestResult{}, ErrInvalidSignature
	}
	msg, err := ValidateMessage(raw)
	if err != nil {
		return IngestResult{}, err
	}
	created, err := i.Store.InsertMessage(ctx, msg)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{MessageID: msg.MessageID, Duplicate: !created}, nil
}
