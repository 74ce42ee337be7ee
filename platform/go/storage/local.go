package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes documents below BasePath on the local filesystem. Meant
// for development and single-node deployments.
type LocalStore struct {
	BasePath string
	Prefix   string
}

func NewLocalStore(basePath, prefix string) *LocalStore {
	if basePath == "" {
		panic("local document store requires basePath")
	}
	return &LocalStore{BasePath: basePath, Prefix: prefix}
}

func (s *LocalStore) Put(_ context.Context, key, _ string, body []byte) (ObjectLocation, error) {
	loc, err := ResolveObjectLocation(s.BasePath, s.Prefix, key)
	if err != nil {
		return ObjectLocation{}, err
	}

	fullPath := filepath.Join(s.BasePath, filepath.FromSlash(loc.FullPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return ObjectLocation{}, fmt.Errorf("create document dir: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		return ObjectLocation{}, fmt.Errorf("write document: %w", err)
	}
	return loc, nil
}

// Check ensures the base directory exists; safe and idempotent.
func (s *LocalStore) Check(context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.BasePath, s.Prefix), 0o755); err != nil {
		return fmt.Errorf("create base path: %w", err)
	}
	return nil
}

var _ DocumentStore = (*LocalStore)(nil)
