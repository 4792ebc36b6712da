package stored

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/chunkdrive/chunkdrive"
)

type memSource struct {
	mu      sync.Mutex
	maxSize int
	n       int
	data    map[string][]byte
}

func newMemSource(maxSize int) *memSource {
	return &memSource{maxSize: maxSize, data: make(map[string][]byte)}
}

func (m *memSource) MaxSize() int { return m.maxSize }

func (m *memSource) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	id := strings.Repeat("d", 1) + string(rune('0'+m.n))
	m.data[id] = nil
	return chunkdrive.Descriptor(id), nil
}

func (m *memSource) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(d)]
	if !ok {
		return nil, chunkdrive.ErrNotFound
	}
	return v, nil
}

func (m *memSource) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[string(d)]; !ok {
		return chunkdrive.ErrNotFound
	}
	m.data[string(d)] = append([]byte(nil), data...)
	return nil
}

func (m *memSource) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(d))
	return nil
}

func testGlobal(t *testing.T) *chunkdrive.Global {
	t.Helper()
	bucket := chunkdrive.NewBucket("local", newMemSource(4096), nil, nil)
	return chunkdrive.NewGlobal(map[string]*chunkdrive.Bucket{"local": bucket}, 10, 1, "")
}

func TestStoredCreateGetPutDelete(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t)

	s, err := Create(ctx, global, "Hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, global)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("got %q", got)
	}

	if err := s.Put(ctx, global, "World"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err = s.Get(ctx, global)
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got != "World" {
		t.Fatalf("got %q after put", got)
	}

	if err := s.Delete(ctx, global); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, global); err == nil {
		t.Fatalf("expected get after delete to fail")
	}
}

func TestStoredURLRoundtrip(t *testing.T) {
	ctx := context.Background()
	global := testGlobal(t)

	s, err := Create(ctx, global, "Hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	url := s.AsURL()
	parts := strings.SplitN(url, "$", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		t.Fatalf("expected two non-empty parts, got %q", url)
	}

	roundtripped, err := FromURL[string](parts[0], parts[1])
	if err != nil {
		t.Fatalf("from_url: %v", err)
	}
	if roundtripped.Bucket != s.Bucket || !bytes.Equal(roundtripped.Descriptor, s.Descriptor) {
		t.Fatalf("got %+v, want %+v", roundtripped, s)
	}

	got, err := roundtripped.Get(ctx, global)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("got %q", got)
	}
}

func TestStoredURLEscapesDollarSign(t *testing.T) {
	if got := percentEncode("a$b"); got != "a%24b" {
		t.Fatalf("got %q", got)
	}
}
