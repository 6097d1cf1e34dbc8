// Package metadata is a small key/value table in the client's local cache.
// The CLI keeps the current session there.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns common.ErrorNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	// Replace drops every key and stores entries in their place. Run it on
	// a transaction to make the swap atomic.
	Replace(ctx context.Context, entries map[string][]byte) error
}
