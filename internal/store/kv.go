package store

import "context"

// KV is a durable key/value backend. Set must be durable when it returns so
// that a page lifetime starting immediately afterwards observes the value.
// SetMany writes every value or none of them.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
}
