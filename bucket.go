package chunkdrive

import (
	"context"
	"time"

	"github.com/chunkdrive/chunkdrive/metrics"
)

// Bucket wraps a Source with an optional Cipher. Encrypt/Decrypt on a
// descriptor's data uses an IV derived from that descriptor, so the cipher
// needs no extra bookkeeping beyond what's already in the DirectBlock's
// (bucket, descriptor) pair.
type Bucket struct {
	name    string
	source  Source
	cipher  Cipher
	metrics *metrics.Registry
}

// NewBucket wraps source with cipher under name. A nil cipher is treated as
// NoneCipher{}. reg may be nil, disabling metrics for this bucket.
func NewBucket(name string, source Source, cipher Cipher, reg *metrics.Registry) *Bucket {
	if cipher == nil {
		cipher = NoneCipher{}
	}
	return &Bucket{name: name, source: source, cipher: cipher, metrics: reg}
}

// Name is the bucket's configured name, as referenced by Stored handles and
// DirectBlock.Sources.
func (b *Bucket) Name() string { return b.name }

// MaxSize is the largest plaintext chunk this bucket accepts, after
// accounting for the cipher's ciphertext inflation.
func (b *Bucket) MaxSize() int {
	return b.cipher.PostEncryptionMax(b.source.MaxSize())
}

func (b *Bucket) observe(op string, n int, err error, start time.Time) {
	kind := ""
	if err != nil {
		kind = KindTransport.String()
		if e, ok := err.(*Error); ok {
			kind = e.Kind.String()
		}
	}
	b.metrics.Observe(b.name, op, n, kind, time.Since(start))
}

// Create mints a fresh descriptor from the underlying Source.
func (b *Bucket) Create(ctx context.Context) (Descriptor, error) {
	start := time.Now()
	d, err := b.source.Create(ctx)
	b.observe("create", 0, err, start)
	if err != nil {
		return nil, NewError(KindTransport, "bucket.create", err)
	}
	return d, nil
}

// Put encrypts data under an IV derived from d and writes it to the
// underlying Source.
func (b *Bucket) Put(ctx context.Context, d Descriptor, data []byte) error {
	start := time.Now()
	iv := DeriveIV(d, b.cipher.IVSize())
	ct, err := b.cipher.Encrypt(data, iv)
	if err != nil {
		return NewError(KindUsage, "bucket.put", err)
	}
	err = b.source.Put(ctx, d, ct)
	b.observe("put", len(data), err, start)
	if err != nil {
		return NewError(KindTransport, "bucket.put", err)
	}
	return nil
}

// Get reads the blob named by d from the underlying Source and decrypts it.
func (b *Bucket) Get(ctx context.Context, d Descriptor) ([]byte, error) {
	start := time.Now()
	raw, err := b.source.Get(ctx, d)
	if err != nil {
		b.observe("get", 0, err, start)
		return nil, NewError(KindTransport, "bucket.get", err)
	}
	iv := DeriveIV(d, b.cipher.IVSize())
	pt, err := b.cipher.Decrypt(raw, iv)
	b.observe("get", len(pt), err, start)
	if err != nil {
		return nil, NewError(KindShape, "bucket.get", err)
	}
	return pt, nil
}

// Delete removes the blob named by d. Errors from the underlying Source are
// surfaced; callers in the block/inode layers are expected to tolerate
// them, per the core's best-effort delete policy.
func (b *Bucket) Delete(ctx context.Context, d Descriptor) error {
	start := time.Now()
	err := b.source.Delete(ctx, d)
	b.observe("delete", 0, err, start)
	if err != nil {
		return NewError(KindTransport, "bucket.delete", err)
	}
	return nil
}
