package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, ok, err := s.Get(context.Background(), "shoppro:products")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected no payload in a fresh store")
	}
}

func TestSetSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "shoppro:units", []byte(`[{"id":"unit-1","name":"Kg"}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	payload, ok, err := reopened.Get(ctx, "shoppro:units")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !ok {
		t.Fatal("payload lost across reopen")
	}
	if string(payload) != `[{"id":"unit-1","name":"Kg"}]` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "shoppro:session", []byte(`{"userId":"user-1"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "shoppro:session"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "shoppro:session"); ok {
		t.Fatal("key survived delete")
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for corrupt data file")
	}
}
