package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when nothing is stored under the key.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidKey is returned for empty or path-like namespaces and keys.
	ErrInvalidKey = errors.New("store: invalid namespace or key")
)

// Store is a scoped durable key-value store supplied by the host.
type Store interface {
	// Get returns the value stored under namespace/key or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set durably replaces the value stored under namespace/key.
	Set(ctx context.Context, namespace, key string, value []byte) error
}

// ValidateKey checks that namespace and key are usable by every backend.
func ValidateKey(namespace, key string) error {
	for _, part := range []string{namespace, key} {
		if strings.TrimSpace(part) == "" || strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("%w: %q/%q", ErrInvalidKey, namespace, key)
		}
	}
	return nil
}
