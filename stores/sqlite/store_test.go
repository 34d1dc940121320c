package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"design-studio/core"
	"design-studio/stores/storetest"
)

func setupTestDB(t *testing.T) *sqliteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return setupTestDB(t) })
}

func TestOpen_TablesCreated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Open() did not create database file")
	}
	for _, table := range []string{"designs", "cart_items"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not created: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	first, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := first.Save(context.Background(), &core.Design{ID: "d1", UserID: "u", Name: "kept"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	first.Close()

	second, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	got, err := second.Get(context.Background(), "u", "d1")
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if got.Name != "kept" {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, "kept")
	}
}

func TestCreateCartItem_ConcurrentLimit(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	const limit = 4

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := store.CreateCartItem(ctx, &core.CartItem{UserID: "u", Quantity: n}, limit); err != nil {
				t.Errorf("CreateCartItem() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	items, err := store.ListCart(ctx, "u")
	if err != nil {
		t.Fatalf("ListCart() failed: %v", err)
	}
	if len(items) != limit {
		t.Errorf("cart size mismatch: got %d, want %d", len(items), limit)
	}
}
