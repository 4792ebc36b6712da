package source

import (
	"bytes"
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/chunkdrive/chunkdrive"
)

// Cached wraps a Source with an in-memory LRU cache, the same wrapper
// shape as the upstream project's persistent.NewCache over ObjectStorage --
// useful for a remote bucket (Discord, GitHub, S3-compatible) whose reads
// are far more expensive than a map lookup.
type Cached struct {
	base  chunkdrive.Source
	cache *lru.Cache
}

// NewCached wraps base with an LRU cache holding up to size entries.
func NewCached(base chunkdrive.Source, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindUsage, "cached.new", err)
	}
	return &Cached{base: base, cache: c}, nil
}

var _ chunkdrive.Source = (*Cached)(nil)

func (c *Cached) MaxSize() int { return c.base.MaxSize() }

func (c *Cached) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	return c.base.Create(ctx)
}

func (c *Cached) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	if v, ok := c.cache.Get(string(d)); ok {
		return dup(v.([]byte)), nil
	}
	data, err := c.base.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	c.cache.Add(string(d), dup(data))
	return data, nil
}

func (c *Cached) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	if v, ok := c.cache.Get(string(d)); ok && bytes.Equal(v.([]byte), data) {
		return nil
	}
	c.cache.Remove(string(d))
	if err := c.base.Put(ctx, d, data); err != nil {
		return err
	}
	c.cache.Add(string(d), dup(data))
	return nil
}

func (c *Cached) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	c.cache.Remove(string(d))
	return c.base.Delete(ctx, d)
}

func dup(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
