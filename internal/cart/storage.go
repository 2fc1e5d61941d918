package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
)

// StorageKey names the persisted cart, the same key the web storefront uses
// for local storage.
const StorageKey = "slice-sizzle-cart"

// Storage is the persistence port for a cart. Load of a never-saved cart
// returns an empty Snapshot and no error.
type Storage interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Snapshot is the persisted shape. There is no schema version.
type Snapshot struct {
	Items []SnapshotItem `json:"items"`
}

type SnapshotItem struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Category string      `json:"category"`
	Image    string      `json:"image"`
	Quantity int         `json:"quantity"`
}

func SnapshotOf(c Cart) Snapshot {
	items := make([]SnapshotItem, 0, c.Len())
	for _, it := range c.items {
		items = append(items, SnapshotItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    json.Number(it.Price.String()),
			Category: it.Category,
			Image:    it.Image,
			Quantity: it.Quantity,
		})
	}
	return Snapshot{Items: items}
}

var ErrBadSnapshot = errors.New("bad cart snapshot")

// Cart rebuilds a closed cart from the snapshot, normalising it the same way
// New does.
func (s Snapshot) Cart() (Cart, error) {
	items := make([]Item, 0, len(s.Items))
	for _, si := range s.Items {
		price, err := decimal.NewFromString(si.Price.String())
		if err != nil {
			return Cart{}, fmt.Errorf("%w: price of %q: %v", ErrBadSnapshot, si.ID, err)
		}
		items = append(items, Item{
			ID:       si.ID,
			Name:     si.Name,
			Price:    price,
			Category: si.Category,
			Image:    si.Image,
			Quantity: si.Quantity,
		})
	}
	return New(items...), nil
}

// FileStorage keeps the snapshot as JSON in <dir>/<StorageKey>.json. Writes
// go through a temp file and rename so a crash never leaves half a cart.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{path: filepath.Join(dir, StorageKey+".json")}
}

func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cart: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return s, nil
}

func (f *FileStorage) Save(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), StorageKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cart: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// MemStorage keeps the last saved snapshot in memory.
type MemStorage struct {
	mu    sync.Mutex
	snap  Snapshot
	saves int
}

func (m *MemStorage) Load(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Items: append([]SnapshotItem(nil), m.snap.Items...)}, nil
}

func (m *MemStorage) Save(ctx context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{Items: append([]SnapshotItem(nil), s.Items...)}
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *MemStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
