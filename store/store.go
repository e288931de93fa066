// Package store defines the platform key-value interface and its backends.
package store

import (
	"context"
	"errors"
)

// ErrWrongType is returned when a key holds a value of another kind than
// the one requested.
var ErrWrongType = errors.New("stored value has a different type")

// Store is the interface that all key-value backends must implement.
// Reads return the value, whether the key was present, and a backend error.
type Store interface {
	GetBool(ctx context.Context, key string) (bool, bool, error)
	SetBool(ctx context.Context, key string, v bool) error

	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key string, v string) error

	GetInt(ctx context.Context, key string) (int64, bool, error)
	SetInt(ctx context.Context, key string, v int64) error

	// Remove deletes a key. Returns true if it existed.
	Remove(ctx context.Context, key string) (bool, error)

	// Keys returns the sorted keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RemovePrefix deletes every key starting with prefix and returns how many
// were removed.
func RemovePrefix(ctx context.Context, s Store, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		existed, err := s.Remove(ctx, k)
		if err != nil {
			return n, err
		}
		if existed {
			n++
		}
	}
	return n, nil
}
