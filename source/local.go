// Package source implements the concrete Source back-ends: Local disk,
// Discord webhook attachments, GitHub release assets, and a few bonus
// object-storage backends (S3-compatible, B2, GCS) grounded on the same
// corpus that taught the rest of this tree. Every type here implements
// chunkdrive.Source.
package source

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/chunkdrive/chunkdrive"
)

const descriptorAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomDescriptor(length int) (string, error) {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(descriptorAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = descriptorAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Local is a Source backed by a directory on the local filesystem; each
// descriptor is a random alphanumeric filename within it.
type Local struct {
	dir           string
	descriptorLen int
	maxSize       int
}

// NewLocal returns a Local source rooted at dir, creating it if necessary.
// descriptorLen controls how long generated filenames are; maxSize is the
// limit MaxSize reports (0 selects a 1 GiB default). Put does not check
// blob sizes against it.
func NewLocal(dir string, descriptorLen, maxSize int) (*Local, error) {
	if descriptorLen <= 0 {
		descriptorLen = 24
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "local.new", err)
	}
	return &Local{dir: dir, descriptorLen: descriptorLen, maxSize: maxSize}, nil
}

var _ chunkdrive.Source = (*Local)(nil)

// MaxSize returns the configured cap, or a generous default if unbounded.
func (l *Local) MaxSize() int {
	if l.maxSize <= 0 {
		return 1 << 30
	}
	return l.maxSize
}

func (l *Local) path(d chunkdrive.Descriptor) string {
	return filepath.Join(l.dir, string(d))
}

// Create mints a fresh, collision-free descriptor and creates an empty file
// for it, retrying on collision the way the data model requires.
func (l *Local) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	for attempt := 0; attempt < 16; attempt++ {
		name, err := randomDescriptor(l.descriptorLen)
		if err != nil {
			return nil, chunkdrive.NewError(chunkdrive.KindTransport, "local.create", err)
		}
		path := filepath.Join(l.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, chunkdrive.NewError(chunkdrive.KindTransport, "local.create", err)
		}
		f.Close()
		return chunkdrive.Descriptor(name), nil
	}
	return nil, chunkdrive.NewError(chunkdrive.KindExhaustion, "local.create", fmt.Errorf("too many descriptor collisions"))
}

// Get reads the full file named by d.
func (l *Local) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	data, err := os.ReadFile(l.path(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chunkdrive.NewError(chunkdrive.KindNotFound, "local.get", err)
		}
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "local.get", err)
	}
	return data, nil
}

// Put truncates and rewrites the file named by d. d must already exist
// (minted via Create) -- a write to a nonexistent descriptor fails.
func (l *Local) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	path := l.path(d)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return chunkdrive.NewError(chunkdrive.KindNotFound, "local.put", err)
		}
		return chunkdrive.NewError(chunkdrive.KindTransport, "local.put", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "local.put", err)
	}
	return nil
}

// Delete removes the file named by d. A missing file is treated as success
// per the core's delete-idempotence resolution.
func (l *Local) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	if err := os.Remove(l.path(d)); err != nil && !os.IsNotExist(err) {
		return chunkdrive.NewError(chunkdrive.KindTransport, "local.delete", err)
	}
	return nil
}
