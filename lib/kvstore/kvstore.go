// Package kvstore implements the path addressed key-value store the usage figures
// are persisted to.
package kvstore

import (
	"bytes"
	"context"
)

// Store is a single connection to the store, it must be closed by whoever opened it.
type Store interface {
	// Put creates or overwrites the integer at path.
	Put(ctx context.Context, path string, value int64) error
	// Get returns the raw json value at path, `null` when nothing was ever written.
	Get(ctx context.Context, path string) ([]byte, error)
	Close() error
}

// Opener opens a new connection, connections are never shared between invocations.
//
// note: fault injection point
type Opener interface {
	Open(ctx context.Context) (Store, error)
}

var null = []byte("null")

// IsNull reports whether raw is an absent value.
func IsNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, null)
}
