// Package secrets fetches named secrets (the challenge signing key, TLS
// certificates) from a configured backend: a local directory, an S3
// bucket or a Vault KV v2 mount.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrSecretNotFound is returned when the backend has no secret by that id.
var ErrSecretNotFound = errors.New("secret not found")

// Store returns the raw bytes of a named secret.
type Store interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// FileStore reads each secret from a file named after its id inside Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Fetch(_ context.Context, id string) ([]byte, error) {
	if !filepath.IsLocal(id) {
		return nil, fmt.Errorf("secrets: invalid id %q", id)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
		}
		return nil, err
	}
	return data, nil
}

// MemoryStore keeps secrets in process memory. It is meant for tests and
// local development.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (s *MemoryStore) Put(id string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[id] = append([]byte(nil), value...)
}

func (s *MemoryStore) Fetch(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}
	return append([]byte(nil), v...), nil
}
