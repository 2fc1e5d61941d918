package cart

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestFileStorage_MissingIsEmpty(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	snap, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("items=%d", len(snap.Items))
	}
}

func TestFileStorage_RoundTripKeepsPriceNumeric(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)
	ctx := context.Background()

	c := Cart{}.Add(product("p1", "12.50")).Add(product("p1", "12.50"))
	if err := fs.Save(ctx, SnapshotOf(c)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Base(fs.Path()) != "slice-sizzle-cart.json" {
		t.Fatalf("path=%s", fs.Path())
	}
	raw, err := os.ReadFile(fs.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"price":12.5`) {
		t.Fatalf("price not a JSON number: %s", raw)
	}
	if strings.Contains(string(raw), "open") {
		t.Fatalf("open flag persisted: %s", raw)
	}

	snap, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	back, err := snap.Cart()
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if back.ItemCount() != 2 || !back.Subtotal().Equal(c.Subtotal()) {
		t.Fatalf("count=%d subtotal=%s", back.ItemCount(), back.Subtotal())
	}
}

func TestFileStorage_Corrupt(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)
	if err := os.WriteFile(fs.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Load(context.Background()); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("err=%v", err)
	}
}

func TestOpenSession_CorruptFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)
	if err := os.WriteFile(fs.Path(), []byte(`{"items":[{"id":"p1","price":"abc","quantity":1}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSession(context.Background(), fs, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if !s.Snapshot().IsEmpty() {
		t.Fatalf("expected empty cart")
	}
}

func TestSession_SavesAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	mem := &MemStorage{}

	s, err := OpenSession(ctx, mem, nil)
	if err != nil {
		t.Fatal(err)
	}

	steps := []func() error{
		func() error { _, err := s.AddItem(ctx, product("p1", "10")); return err },
		func() error { _, err := s.AddItem(ctx, product("p2", "4")); return err },
		func() error { _, err := s.IncrementQuantity(ctx, "p1"); return err },
		func() error { _, err := s.DecrementQuantity(ctx, "p2"); return err },
		func() error { _, err := s.UpdateQuantity(ctx, "p1", 5); return err },
		func() error { _, err := s.ToggleCart(ctx); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if mem.Saves() != i+1 {
			t.Fatalf("after step %d saves=%d", i, mem.Saves())
		}
	}

	snap, _ := mem.Load(ctx)
	if len(snap.Items) != 1 || snap.Items[0].ID != "p1" || snap.Items[0].Quantity != 5 {
		t.Fatalf("saved=%+v", snap.Items)
	}

	reopened, err := OpenSession(ctx, mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ItemCount() != 5 || reopened.Snapshot().IsOpen() {
		t.Fatalf("reopened count=%d open=%v", reopened.ItemCount(), reopened.Snapshot().IsOpen())
	}
}

type failingStorage struct{ MemStorage }

func (f *failingStorage) Save(context.Context, Snapshot) error { return errors.New("disk full") }

func TestSession_SaveErrorStillAppliesMutation(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSession(ctx, &failingStorage{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	c, err := s.AddItem(ctx, product("p1", "1"))
	if err == nil {
		t.Fatalf("expected save error")
	}
	if c.ItemCount() != 1 || s.ItemCount() != 1 {
		t.Fatalf("mutation lost: %d/%d", c.ItemCount(), s.ItemCount())
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	raw := []byte(`{"items":[{"id":"drink-cola","name":"Cola","price":180,"category":"drink","image":"/img/cola.jpg","quantity":2}]}`)

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	c, err := snap.Cart()
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Subtotal().String(); got != "360" {
		t.Fatalf("subtotal=%s", got)
	}
}
