// Package block implements the recursive, polymorphic block tree: the
// engine that turns a flat byte range into a tree of DirectBlock,
// IndirectBlock, and StoredBlock nodes and back. The three node kinds share
// one contract (range/get/put/delete/repair), dispatched through BlockType
// the way the upstream Rust source dispatched through its match_method!
// macro over an enum -- here as a struct with at most one populated variant
// field and a hand-written MessagePack encoding that serializes to a
// single-key map ({"d": ...}, {"i": ...}, or {"s": ...}).
package block

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chunkdrive/chunkdrive"
)

// Range is a half-open byte range [Start, End) within a block's logical
// stream.
type Range struct {
	Start int
	End   int
}

// Len is the number of bytes the range spans.
func (r Range) Len() int { return r.End - r.Start }

// Intersect returns the overlap of r and o, and whether they overlap at all.
func (r Range) Intersect(o Range) (Range, bool) {
	start := r.Start
	if o.Start > start {
		start = o.Start
	}
	end := r.End
	if o.End < end {
		end = o.End
	}
	if start >= end {
		return Range{}, false
	}
	return Range{start, end}, true
}

// Block is the contract every node in the tree implements. get/put take
// ranges in the coordinates of the logical stream the tree's root
// represents; every block in one tree shares those coordinates, so parents
// pass ranges to children unchanged.
type Block interface {
	Range() Range
	Get(ctx context.Context, global *chunkdrive.Global, rng Range, w io.Writer) error
	Put(ctx context.Context, global *chunkdrive.Global, rng Range, data []byte) error
	Delete(ctx context.Context, global *chunkdrive.Global) error
	Repair(ctx context.Context, global *chunkdrive.Global, rng Range) error
}

// BlockType is the tagged union of the three block kinds. Exactly one of
// Direct, Indirect, or Stored is non-nil on any value produced or accepted
// by this package.
type BlockType struct {
	Direct   *DirectBlock
	Indirect *IndirectBlock
	Stored   *StoredBlock
}

var (
	_ Block = BlockType{}
	_ msgpack.CustomEncoder = BlockType{}
	_ msgpack.CustomDecoder = (*BlockType)(nil)
)

func (bt BlockType) inner() Block {
	switch {
	case bt.Direct != nil:
		return bt.Direct
	case bt.Indirect != nil:
		return bt.Indirect
	case bt.Stored != nil:
		return bt.Stored
	default:
		return nil
	}
}

func (bt BlockType) Range() Range {
	if b := bt.inner(); b != nil {
		return b.Range()
	}
	return Range{}
}

func (bt BlockType) Get(ctx context.Context, global *chunkdrive.Global, rng Range, w io.Writer) error {
	b := bt.inner()
	if b == nil {
		return chunkdrive.NewError(chunkdrive.KindUsage, "block.get", fmt.Errorf("empty BlockType"))
	}
	return b.Get(ctx, global, rng, w)
}

func (bt BlockType) Put(ctx context.Context, global *chunkdrive.Global, rng Range, data []byte) error {
	b := bt.inner()
	if b == nil {
		return chunkdrive.NewError(chunkdrive.KindUsage, "block.put", fmt.Errorf("empty BlockType"))
	}
	return b.Put(ctx, global, rng, data)
}

func (bt BlockType) Delete(ctx context.Context, global *chunkdrive.Global) error {
	b := bt.inner()
	if b == nil {
		return nil
	}
	return b.Delete(ctx, global)
}

func (bt BlockType) Repair(ctx context.Context, global *chunkdrive.Global, rng Range) error {
	b := bt.inner()
	if b == nil {
		return chunkdrive.NewError(chunkdrive.KindUsage, "block.repair", fmt.Errorf("empty BlockType"))
	}
	return b.Repair(ctx, global, rng)
}

// EncodeMsgpack writes BlockType as a single-key map tagged by kind, the
// same "d"/"i"/"s" tag the data model's BlockType carries.
func (bt BlockType) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch {
	case bt.Direct != nil:
		return encodeTagged(enc, "d", bt.Direct)
	case bt.Indirect != nil:
		return encodeTagged(enc, "i", bt.Indirect)
	case bt.Stored != nil:
		return encodeTagged(enc, "s", bt.Stored)
	default:
		return fmt.Errorf("block: cannot encode empty BlockType")
	}
}

func encodeTagged(enc *msgpack.Encoder, tag string, v any) error {
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString(tag); err != nil {
		return err
	}
	return enc.Encode(v)
}

// DecodeMsgpack reads a single-key map and populates the matching variant.
func (bt *BlockType) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "d":
			var db DirectBlock
			if err := dec.Decode(&db); err != nil {
				return err
			}
			bt.Direct = &db
		case "i":
			var ib IndirectBlock
			if err := dec.Decode(&ib); err != nil {
				return err
			}
			bt.Indirect = &ib
		case "s":
			var sb StoredBlock
			if err := dec.Decode(&sb); err != nil {
				return err
			}
			bt.Stored = &sb
		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create builds a tree over data starting at logical offset start. It always
// produces an IndirectBlock at the top, the same way the upstream source's
// BlockType::create delegated straight to IndirectBlock::create because an
// indirect node is the only kind that can represent an arbitrary size.
func Create(ctx context.Context, global *chunkdrive.Global, data []byte, start int) (BlockType, error) {
	ib, err := CreateIndirect(ctx, global, data, start)
	if err != nil {
		return BlockType{}, err
	}
	return BlockType{Indirect: &ib}, nil
}
