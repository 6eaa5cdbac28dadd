package repositories

import (
	"context"
	"time"
)

// CartBlob is an encoded cart as stored, with its version.
type CartBlob struct {
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}

// CartRepository stores encoded carts keyed by cart ID. Save is a
// compare-and-set: it succeeds only when the stored version equals expected
// (0 meaning "no record yet") and returns the new version.
type CartRepository interface {
	Load(ctx context.Context, id string) (*CartBlob, error)
	Save(ctx context.Context, id string, payload []byte, expected int64) (int64, error)
	Delete(ctx context.Context, id string) error
}
