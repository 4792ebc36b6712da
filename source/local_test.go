package source

import (
	"bytes"
	"context"
	"testing"
)

func TestLocalCreateGetPutDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	d, err := l.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(d) != 24 {
		t.Fatalf("expected default descriptor length 24, got %d", len(d))
	}

	if err := l.Put(ctx, d, []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := l.Get(ctx, d)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q", got)
	}

	if err := l.Delete(ctx, d); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.Get(ctx, d); err == nil {
		t.Fatalf("expected get after delete to fail")
	}
}

func TestLocalPutWithoutCreateFails(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := l.Put(ctx, []byte("nonexistent"), []byte("x")); err == nil {
		t.Fatalf("expected put to a descriptor never created to fail")
	}
}

func TestCachedServesFromCacheWithoutBaseHit(t *testing.T) {
	ctx := context.Background()
	base, err := NewLocal(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cached, err := NewCached(base, 16)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	d, err := cached.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cached.Put(ctx, d, []byte("cached value")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Delete straight from the base, bypassing the cache's bookkeeping, to
	// prove a subsequent Get is served from cache rather than hitting base.
	if err := base.Delete(ctx, d); err != nil {
		t.Fatalf("base delete: %v", err)
	}
	got, err := cached.Get(ctx, d)
	if err != nil {
		t.Fatalf("expected cached get to succeed despite base deletion: %v", err)
	}
	if !bytes.Equal(got, []byte("cached value")) {
		t.Fatalf("got %q", got)
	}
}
