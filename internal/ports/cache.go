package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability for usecases: relay cursors and
// anchor receipts live here.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
