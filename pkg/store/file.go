package store

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore implements Store with one file per key under dir/namespace.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Get reads the file for namespace/key.
func (f *FileStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(namespace, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set writes the value atomically (temp file, then rename).
func (f *FileStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := ValidateKey(namespace, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(f.dir, namespace), 0o700); err != nil {
		return err
	}

	path := f.Path(namespace, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the file backing namespace/key.
func (f *FileStore) Path(namespace, key string) string {
	return filepath.Join(f.dir, namespace, key)
}
