package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PendingKeyFile names the file, inside the storefront state directory, that
// holds the idempotency key of an order not yet confirmed by the server.
const PendingKeyFile = "slice-sizzle-checkout.json"

// PendingKey ties an idempotency key to the order fingerprint it was minted for.
type PendingKey struct {
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
}

func (p PendingKey) IsZero() bool { return p.Key == "" }

// KeyStore keeps the pending key across runs so a retry after an ambiguous
// failure reaches the server with the key of the first attempt.
type KeyStore interface {
	Load(ctx context.Context) (PendingKey, error)
	Save(ctx context.Context, p PendingKey) error
}

type FileKeyStore struct {
	mu   sync.Mutex
	path string
}

func NewFileKeyStore(dir string) *FileKeyStore {
	return &FileKeyStore{path: filepath.Join(dir, PendingKeyFile)}
}

func (s *FileKeyStore) Path() string { return s.path }

func (s *FileKeyStore) Load(ctx context.Context) (PendingKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return PendingKey{}, nil
	}
	if err != nil {
		return PendingKey{}, fmt.Errorf("read pending key: %w", err)
	}

	var p PendingKey
	if err := json.Unmarshal(raw, &p); err != nil {
		return PendingKey{}, fmt.Errorf("decode pending key: %w", err)
	}
	return p, nil
}

// Save writes p, or removes the file when p is zero.
func (s *FileKeyStore) Save(ctx context.Context, p PendingKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsZero() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("drop pending key: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pending key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "slice-sizzle-checkout-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp key: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write pending key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close pending key: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
