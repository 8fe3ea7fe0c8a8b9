package port

import (
	"context"

	"github.com/pkg/errors"
)

var ErrKeyNotFound = errors.New("key not found")

type KeyValueStore interface {
	// Get returns ErrKeyNotFound when nothing is stored under key
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces whatever is stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
