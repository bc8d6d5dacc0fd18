package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := kv.Get(ctx, "expenses"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := kv.Put(ctx, "expenses", []byte(`[1]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put(ctx, "expenses", []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := kv.Get(ctx, "expenses")
	if err != nil || string(got) != `[1,2]` {
		t.Fatalf("get = %s, %v", got, err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs migrations again and keeps the data.
	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	got, err = kv.Get(ctx, "expenses")
	if err != nil || string(got) != `[1,2]` {
		t.Fatalf("get after reopen = %s, %v", got, err)
	}
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	if _, err := kv.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	in := []byte("abc")
	if err := kv.Put(ctx, "k", in); err != nil {
		t.Fatalf("put: %v", err)
	}
	in[0] = 'x'
	out, _ := kv.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value aliased caller slice: %s", out)
	}
	out[0] = 'y'
	again, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliases storage: %s", again)
	}
}
