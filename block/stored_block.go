package block

import (
	"context"
	"io"

	"github.com/chunkdrive/chunkdrive"
	"github.com/chunkdrive/chunkdrive/stored"
)

// StoredBlock indirects through a Stored handle to a whole BlockType
// subtree, so an IndirectBlock's overflow tail can live in its own bucket
// entry rather than growing the parent's serialized form without bound.
// Range is kept alongside the handle rather than recomputed from the
// dereferenced tree, since Block.Range must answer without doing I/O.
type StoredBlock struct {
	Rng    Range                    `msgpack:"r"`
	Handle stored.Stored[BlockType] `msgpack:"h"`
}

var _ Block = (*StoredBlock)(nil)

// CreateStored builds a block tree over data and stores it behind a fresh
// Stored handle.
func CreateStored(ctx context.Context, global *chunkdrive.Global, data []byte, start int) (StoredBlock, error) {
	inner, err := Create(ctx, global, data, start)
	if err != nil {
		return StoredBlock{}, err
	}
	handle, err := stored.Create(ctx, global, inner)
	if err != nil {
		return StoredBlock{}, err
	}
	return StoredBlock{Rng: Range{Start: start, End: start + len(data)}, Handle: handle}, nil
}

func (sb *StoredBlock) Range() Range { return sb.Rng }

func (sb *StoredBlock) Get(ctx context.Context, global *chunkdrive.Global, rng Range, w io.Writer) error {
	if _, ok := sb.Rng.Intersect(rng); !ok {
		return nil
	}
	inner, err := sb.Handle.Get(ctx, global)
	if err != nil {
		return err
	}
	return inner.Get(ctx, global, rng, w)
}

// Put forwards to the wrapped subtree, which may itself dispatch to
// intersecting children and grow at the tail, then re-persists it and
// refreshes the cached range to match. bytes.len() must equal range.len(),
// same genuinely-ambiguous-shrink rejection as IndirectBlock.Put.
func (sb *StoredBlock) Put(ctx context.Context, global *chunkdrive.Global, rng Range, data []byte) error {
	if len(data) != rng.Len() {
		return chunkdrive.NewError(chunkdrive.KindUsage, "stored_block.put", nil)
	}
	inner, err := sb.Handle.Get(ctx, global)
	if err != nil {
		return err
	}
	if err := inner.Put(ctx, global, rng, data); err != nil {
		return err
	}
	sb.Rng = inner.Range()
	return sb.Handle.Put(ctx, global, inner)
}

// Delete removes the wrapped subtree, then the Stored entry itself. Both
// steps are best-effort; a failure to dereference the subtree doesn't stop
// the handle itself from being deleted.
func (sb *StoredBlock) Delete(ctx context.Context, global *chunkdrive.Global) error {
	if inner, err := sb.Handle.Get(ctx, global); err == nil {
		_ = inner.Delete(ctx, global)
	}
	return sb.Handle.Delete(ctx, global)
}

// Repair dereferences the subtree, repairs it, and writes the subtree back
// under the same handle.
func (sb *StoredBlock) Repair(ctx context.Context, global *chunkdrive.Global, rng Range) error {
	inner, err := sb.Handle.Get(ctx, global)
	if err != nil {
		return err
	}
	if err := inner.Repair(ctx, global, rng); err != nil {
		return err
	}
	return sb.Handle.Put(ctx, global, inner)
}
