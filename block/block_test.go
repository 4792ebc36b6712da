package block

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/chunkdrive/chunkdrive"
)

// memSource is an in-memory chunkdrive.Source for exercising the block tree
// without any real transport, the way the upstream project's own tests
// stand up a throwaway ObjectStorage.
type memSource struct {
	mu      sync.Mutex
	maxSize int
	data    map[string][]byte
}

func newMemSource(maxSize int) *memSource {
	return &memSource{maxSize: maxSize, data: make(map[string][]byte)}
}

func (m *memSource) MaxSize() int { return m.maxSize }

func (m *memSource) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	m.mu.Lock()
	m.data[id] = nil
	m.mu.Unlock()
	return chunkdrive.Descriptor(id), nil
}

func (m *memSource) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(d)]
	if !ok {
		return nil, chunkdrive.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memSource) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[string(d)]; !ok {
		return chunkdrive.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[string(d)] = cp
	return nil
}

func (m *memSource) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(d))
	return nil
}

func testGlobal(t *testing.T, bucketMax, directBlockCount int) *chunkdrive.Global {
	t.Helper()
	bucket := chunkdrive.NewBucket("mem", newMemSource(bucketMax), nil, nil)
	buckets := map[string]*chunkdrive.Bucket{"mem": bucket}
	return chunkdrive.NewGlobal(buckets, directBlockCount, 1, "")
}

func getAll(t *testing.T, ctx context.Context, global *chunkdrive.Global, bt BlockType) []byte {
	t.Helper()
	var buf bytes.Buffer
	rng := bt.Range()
	if err := bt.Get(ctx, global, rng, &buf); err != nil {
		t.Fatalf("get: %v", err)
	}
	return buf.Bytes()
}

func TestDirectBlockSingleChunk(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 4096, 10)

	want := []byte("hello, chunkdrive")
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := getAll(t, ctx, global, bt); !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if bt.Indirect == nil || len(bt.Indirect.Children) != 1 || bt.Indirect.Children[0].Direct == nil {
		t.Fatalf("expected a single direct child, got %+v", bt)
	}
}

func TestIndirectBlockMultiChunk(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 8, 10)

	want := bytes.Repeat([]byte("0123456789"), 5) // 50 bytes, 8-byte bucket cap
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(bt.Indirect.Children) < 2 {
		t.Fatalf("expected multiple direct children, got %d", len(bt.Indirect.Children))
	}
	if got := getAll(t, ctx, global, bt); !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIndirectBlockOverflowsToStoredTail(t *testing.T) {
	ctx := context.Background()
	// only 2 direct children before overflow; the bucket must still be large
	// enough to hold the serialized overflow subtree as one Stored blob
	global := testGlobal(t, 512, 2)

	want := bytes.Repeat([]byte("x"), 1280)
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	children := bt.Indirect.Children
	if len(children) != 3 {
		t.Fatalf("expected 2 direct + 1 stored tail, got %d children", len(children))
	}
	if children[0].Direct == nil || children[1].Direct == nil {
		t.Fatalf("expected first two children direct")
	}
	if children[2].Stored == nil {
		t.Fatalf("expected third child to be the stored overflow tail")
	}
	if got := getAll(t, ctx, global, bt); !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIndirectBlockPutExactOverwrite(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 8, 10)

	want := bytes.Repeat([]byte("a"), 20)
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	replacement := bytes.Repeat([]byte("b"), 20)
	if err := bt.Put(ctx, global, bt.Range(), replacement); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := getAll(t, ctx, global, bt); !bytes.Equal(got, replacement) {
		t.Fatalf("got %q, want %q", got, replacement)
	}
}

func TestIndirectBlockPutRejectsLengthMismatch(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 8, 10)

	bt, err := Create(ctx, global, bytes.Repeat([]byte("a"), 16), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bt.Put(ctx, global, bt.Range(), []byte("short")); err == nil {
		t.Fatalf("expected length-mismatch put to fail")
	}
}

func TestIndirectBlockPutSubRange(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 8, 10)

	want := bytes.Repeat([]byte("a"), 32) // four 8-byte direct children
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(bt.Indirect.Children) != 4 {
		t.Fatalf("expected 4 children, got %d", len(bt.Indirect.Children))
	}

	replacement := bytes.Repeat([]byte("b"), 8)
	if err := bt.Put(ctx, global, Range{Start: 8, End: 16}, replacement); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := getAll(t, ctx, global, bt)
	want2 := append(append(append([]byte{}, want[:8]...), replacement...), want[16:]...)
	if !bytes.Equal(got, want2) {
		t.Fatalf("got %q, want %q", got, want2)
	}
	if len(bt.Indirect.Children) != 4 {
		t.Fatalf("sub-range put should not change child count, got %d", len(bt.Indirect.Children))
	}
}

func TestIndirectBlockPutGrowsTail(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 8, 10)

	want := bytes.Repeat([]byte("a"), 16) // two 8-byte direct children
	bt, err := Create(ctx, global, want, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if bt.Range() != (Range{Start: 0, End: 16}) {
		t.Fatalf("unexpected initial range %+v", bt.Range())
	}

	grown := append(append([]byte{}, want...), bytes.Repeat([]byte("c"), 8)...)
	if err := bt.Put(ctx, global, Range{Start: 0, End: 24}, grown); err != nil {
		t.Fatalf("put: %v", err)
	}
	if bt.Range() != (Range{Start: 0, End: 24}) {
		t.Fatalf("expected range to grow to 0..24, got %+v", bt.Range())
	}
	if len(bt.Indirect.Children) != 3 {
		t.Fatalf("expected a new tail child, got %d children", len(bt.Indirect.Children))
	}
	if got := getAll(t, ctx, global, bt); !bytes.Equal(got, grown) {
		t.Fatalf("got %q, want %q", got, grown)
	}
}

func TestBlockDeleteRemovesData(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t, 512, 2)

	bt, err := Create(ctx, global, bytes.Repeat([]byte("z"), 1280), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bt.Delete(ctx, global); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var buf bytes.Buffer
	if err := bt.Get(ctx, global, bt.Range(), &buf); err == nil && buf.Len() > 0 {
		t.Fatalf("expected deleted block to no longer be readable, got %q", buf.Bytes())
	}
}

func TestDirectBlockReplicaFanOut(t *testing.T) {
	ctx := context.Background()
	b1 := chunkdrive.NewBucket("b1", newMemSource(4096), nil, nil)
	b2 := chunkdrive.NewBucket("b2", newMemSource(4096), nil, nil)
	global := chunkdrive.NewGlobal(map[string]*chunkdrive.Bucket{"b1": b1, "b2": b2}, 10, 2, "")

	db, n, err := CreateDirect(ctx, global, []byte("redundant"), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n != len("redundant") {
		t.Fatalf("consumed %d bytes, want %d", n, len("redundant"))
	}
	if len(db.Sources) != 2 {
		t.Fatalf("expected 2 replicas, got %d", len(db.Sources))
	}
}
