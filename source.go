package chunkdrive

import "context"

// Descriptor identifies one blob within one Source. Its format is
// Source-specific; descriptors minted by one Source are meaningless to any
// other Source.
type Descriptor []byte

// Source is a byte-blob store: the lowest layer a Bucket wraps. create mints
// a fresh descriptor; put/get/delete operate on a previously-created
// descriptor. All operations may fail with a transport/IO error. put on a
// descriptor that was never created must fail; delete of a missing
// descriptor should be treated as success where the backend allows it.
type Source interface {
	// MaxSize is the largest single-blob byte count this Source guarantees
	// to accept.
	MaxSize() int
	// Create mints a fresh descriptor, optionally reserving space for it.
	Create(ctx context.Context) (Descriptor, error)
	// Get reads the full blob named by d.
	Get(ctx context.Context, d Descriptor) ([]byte, error)
	// Put overwrites the blob named by d.
	Put(ctx context.Context, d Descriptor, data []byte) error
	// Delete removes the blob named by d.
	Delete(ctx context.Context, d Descriptor) error
}
