package memory

import (
	"context"
	"testing"

	"design-studio/core"
	"design-studio/stores/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return NewStore() })
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Save(ctx, &core.Design{ID: "d1", UserID: "u", Data: []byte("abc")}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := s.Get(ctx, "u", "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	got.Data[0] = 'x'
	again, _ := s.Get(ctx, "u", "d1")
	if string(again.Data) != "abc" {
		t.Errorf("stored data was mutated through Get(): %q", again.Data)
	}
}

func TestSaveRequiresIDs(t *testing.T) {
	s := NewStore()
	if err := s.Save(context.Background(), &core.Design{UserID: "u"}); err == nil {
		t.Error("Save() without an id should fail")
	}
	if err := s.Save(context.Background(), &core.Design{ID: "d"}); err == nil {
		t.Error("Save() without a user should fail")
	}
}
