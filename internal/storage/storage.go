package storage

import (
	"context"
)

type Storage interface {
	// Put stores data under the slash-separated key and returns its location
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data stored under the key
	Get(ctx context.Context, key string) ([]byte, error)
}
