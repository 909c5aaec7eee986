package memory

import (
	"context"
	"testing"
)

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Set(ctx, "shoppro:categories", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	payload, ok, err := s.Get(ctx, "shoppro:categories")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	payload[0] = 'X'

	again, _, _ := s.Get(ctx, "shoppro:categories")
	if string(again) != `[]` {
		t.Fatalf("stored payload mutated through returned slice: %s", again)
	}
}

func TestMissingKey(t *testing.T) {
	s := New()
	_, ok, err := s.Get(context.Background(), "shoppro:invoices")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unwritten key")
	}
}
