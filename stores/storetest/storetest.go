// Package storetest holds behaviour tests shared by every store backend.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"design-studio/core"
)

// Store is what a backend must implement to run the suite.
type Store interface {
	core.DesignStore
	core.CartStore
}

// Run exercises s. Each subtest gets a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("SaveKeepsCreatedAt", func(t *testing.T) { testSaveKeepsCreatedAt(t, newStore(t)) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, newStore(t)) })
	t.Run("UserIsolation", func(t *testing.T) { testUserIsolation(t, newStore(t)) })
	t.Run("ListOmitsData", func(t *testing.T) { testListOmitsData(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("CartCreateAndFind", func(t *testing.T) { testCartCreateAndFind(t, newStore(t)) })
	t.Run("CartLimitEvictsOldest", func(t *testing.T) { testCartLimit(t, newStore(t)) })
	t.Run("CartDelete", func(t *testing.T) { testCartDelete(t, newStore(t)) })
}

func design(userID, id, name string) *core.Design {
	return &core.Design{
		ID:          id,
		UserID:      userID,
		Name:        name,
		ProductType: "banner",
		Thumbnail:   "data:image/png;base64,AAAA",
		Data:        []byte(`{"pages":[{"elements":[]}]}`),
	}
}

func testSaveAndGet(t *testing.T, s Store) {
	ctx := context.Background()
	want := design("user-1", "d1", "Shop front")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Get(ctx, "user-1", "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != want.Name {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, want.Name)
	}
	if got.ProductType != "banner" {
		t.Errorf("ProductType mismatch: got %q, want %q", got.ProductType, "banner")
	}
	if got.Thumbnail != want.Thumbnail {
		t.Errorf("Thumbnail mismatch: got %q, want %q", got.Thumbnail, want.Thumbnail)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("Data mismatch: got %q, want %q", got.Data, want.Data)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID mismatch: got %q, want %q", got.UserID, "user-1")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func testSaveKeepsCreatedAt(t *testing.T, s Store) {
	ctx := context.Background()
	d := design("user-1", "d1", "first")
	if err := s.Save(ctx, d); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	first, err := s.Get(ctx, "user-1", "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	d = design("user-1", "d1", "second")
	if err := s.Save(ctx, d); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	second, err := s.Get(ctx, "user-1", "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if second.Name != "second" {
		t.Errorf("Name mismatch: got %q, want %q", second.Name, "second")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: got %v, want %v", second.CreatedAt, first.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt should advance: got %v, first %v", second.UpdatedAt, first.UpdatedAt)
	}

	list, err := s.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d designs, want 1", len(list))
	}
}

func testGetNotFound(t *testing.T, s Store) {
	_, err := s.Get(context.Background(), "user-1", "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func testUserIsolation(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.Save(ctx, design("alice", "shared-id", "alice's")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := s.Get(ctx, "bob", "shared-id"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() as another user: error = %v, want ErrNotFound", err)
	}
	list, err := s.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() for other user returned %d designs, want 0", len(list))
	}
	if err := s.Delete(ctx, "bob", "shared-id"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete() as another user: error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "alice", "shared-id"); err != nil {
		t.Errorf("design should survive another user's delete: %v", err)
	}
}

func testListOmitsData(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Save(ctx, design("user-1", fmt.Sprintf("d%d", i), fmt.Sprintf("Design %d", i))); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	list, err := s.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d designs, want 3", len(list))
	}
	for _, d := range list {
		if len(d.Data) != 0 {
			t.Errorf("List() entry %s carries %d bytes of data", d.ID, len(d.Data))
		}
		if d.Name == "" {
			t.Errorf("List() entry %s has no name", d.ID)
		}
	}
}

func testDelete(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.Save(ctx, design("user-1", "d1", "doomed")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Delete(ctx, "user-1", "d1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, "user-1", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after delete: error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "user-1", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete(): error = %v, want ErrNotFound", err)
	}
}

func cartItem(userID string, n int) *core.CartItem {
	return &core.CartItem{
		UserID:      userID,
		DesignID:    "d1",
		ProductType: "banner",
		Material:    "vinyl",
		Quantity:    n,
		Width:       72,
		Height:      36,
		UnitPrice:   42.5,
		Preview:     "data:image/png;base64,AAAA",
		Data:        []byte(fmt.Sprintf(`{"pages":[{"elements":[]}],"n":%d}`, n)),
	}
}

func testCartCreateAndFind(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.CreateCartItem(ctx, cartItem("user-1", 3), 5)
	if err != nil {
		t.Fatalf("CreateCartItem() failed: %v", err)
	}
	if id == "" {
		t.Fatal("CreateCartItem() returned empty id")
	}

	got, err := s.FindCartItem(ctx, "user-1", id)
	if err != nil {
		t.Fatalf("FindCartItem() failed: %v", err)
	}
	if got.Quantity != 3 || got.Material != "vinyl" || got.Width != 72 || got.UnitPrice != 42.5 {
		t.Errorf("FindCartItem() = %+v", got)
	}
	if !bytes.Equal(got.Data, cartItem("user-1", 3).Data) {
		t.Errorf("Data mismatch: got %q", got.Data)
	}
	if _, err := s.FindCartItem(ctx, "user-2", id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindCartItem() as another user: error = %v, want ErrNotFound", err)
	}
}

func testCartLimit(t *testing.T, s Store) {
	ctx := context.Background()
	const limit = 3
	var ids []string
	for i := 1; i <= 5; i++ {
		id, err := s.CreateCartItem(ctx, cartItem("user-1", i), limit)
		if err != nil {
			t.Fatalf("CreateCartItem() %d failed: %v", i, err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	items, err := s.ListCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCart() failed: %v", err)
	}
	if len(items) != limit {
		t.Fatalf("cart size mismatch: got %d, want %d", len(items), limit)
	}
	for i, item := range items {
		if want := ids[i+2]; item.ID != want {
			t.Errorf("item %d: got id %s, want %s", i, item.ID, want)
		}
		if len(item.Data) != 0 {
			t.Errorf("ListCart() entry %s carries data", item.ID)
		}
	}
	for _, id := range ids[:2] {
		if _, err := s.FindCartItem(ctx, "user-1", id); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("old cart item %s should have been evicted, got %v", id, err)
		}
	}
}

func testCartDelete(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.CreateCartItem(ctx, cartItem("user-1", 1), 0)
	if err != nil {
		t.Fatalf("CreateCartItem() failed: %v", err)
	}
	if err := s.DeleteCartItem(ctx, "user-2", id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteCartItem() as another user: error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteCartItem(ctx, "user-1", id); err != nil {
		t.Fatalf("DeleteCartItem() failed: %v", err)
	}
	items, err := s.ListCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCart() failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("cart should be empty, got %d items", len(items))
	}
}
