package checklist

import (
	"context"
	"errors"
	"time"
)

var ErrDraftNotFound = errors.New("checklist draft not found")

// DraftStore is a key-value store for serialized drafts. Load returns
// ErrDraftNotFound for missing or expired keys.
type DraftStore interface {
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
