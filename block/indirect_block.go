package block

import (
	"context"
	"errors"
	"io"

	"github.com/chunkdrive/chunkdrive"
)

// IndirectBlock is an internal node: an ordered list of children, each
// covering a contiguous, non-overlapping sub-range of the parent's span. Up
// to Global.DirectBlockCount children are DirectBlocks; if data is too big
// to fit that many leaves, the remainder is hoisted into a single
// StoredBlock tail that itself wraps another block tree, the same "spill to
// a child Stored entry" trick the upstream source used to keep any one
// serialized node bounded in size.
type IndirectBlock struct {
	Rng      Range       `msgpack:"r"`
	Children []BlockType `msgpack:"c"`
}

var _ Block = (*IndirectBlock)(nil)

func (ib *IndirectBlock) Range() Range { return ib.Rng }

// CreateIndirect fills direct children up to DirectBlockCount, then -- if
// data remains -- wraps the rest in one StoredBlock tail.
func CreateIndirect(ctx context.Context, global *chunkdrive.Global, data []byte, start int) (IndirectBlock, error) {
	if len(data) == 0 {
		return IndirectBlock{Rng: Range{Start: start, End: start}}, nil
	}

	maxDirect := global.DirectBlockCount
	var children []BlockType
	rollback := func() {
		for _, c := range children {
			_ = c.Delete(ctx, global)
		}
	}

	offset := start
	remaining := data
	for len(remaining) > 0 && len(children) < maxDirect {
		db, n, err := CreateDirect(ctx, global, remaining, offset)
		if err != nil {
			rollback()
			return IndirectBlock{}, err
		}
		children = append(children, BlockType{Direct: &db})
		offset += n
		remaining = remaining[n:]
	}

	if len(remaining) > 0 {
		sb, err := CreateStored(ctx, global, remaining, offset)
		if err != nil {
			rollback()
			return IndirectBlock{}, err
		}
		children = append(children, BlockType{Stored: &sb})
		offset += len(remaining)
	}

	return IndirectBlock{Rng: Range{Start: start, End: offset}, Children: children}, nil
}

// Get forwards rng to every child in order. Children whose own range doesn't
// overlap rng are no-ops, so callers can always pass the full outer range
// and rely on each child to pick out its own contribution.
func (ib *IndirectBlock) Get(ctx context.Context, global *chunkdrive.Global, rng Range, w io.Writer) error {
	for i := range ib.Children {
		if err := ib.Children[i].Get(ctx, global, rng, w); err != nil {
			return err
		}
	}
	return nil
}

// Put dispatches to every child whose extent falls entirely within rng,
// handing each the slice of data corresponding to its own extent, then --
// if data remains beyond the last child -- grows the tree at the tail:
// new DirectBlocks up to DirectBlockCount, then a StoredBlock tail for any
// overflow. bytes.len() must equal range.len(); a caller passing a shorter
// slice than the range it names is the one genuinely ambiguous case (the
// source's draft revisions disagreed on it), so that's still rejected with
// KindUsage rather than guessed at.
func (ib *IndirectBlock) Put(ctx context.Context, global *chunkdrive.Global, rng Range, data []byte) error {
	if len(data) != rng.Len() {
		return chunkdrive.NewError(chunkdrive.KindUsage, "indirect_block.put", nil)
	}

	for i := range ib.Children {
		childRng := ib.Children[i].Range()
		if childRng.Start < childRng.End && childRng.Start >= rng.Start && childRng.End <= rng.End {
			slice := data[childRng.Start-rng.Start : childRng.End-rng.Start]
			if err := ib.Children[i].Put(ctx, global, childRng, slice); err != nil {
				return err
			}
		}
	}

	tailStart := rng.Start
	if n := len(ib.Children); n > 0 {
		tailStart = ib.Children[n-1].Range().End
	}
	if tailStart < rng.Start {
		tailStart = rng.Start
	}

	for tailStart < rng.End && len(ib.Children) < global.DirectBlockCount {
		db, n, err := CreateDirect(ctx, global, data[tailStart-rng.Start:], tailStart)
		if err != nil {
			return err
		}
		ib.Children = append(ib.Children, BlockType{Direct: &db})
		tailStart += n
	}

	if tailStart < rng.End {
		sb, err := CreateStored(ctx, global, data[tailStart-rng.Start:], tailStart)
		if err != nil {
			return err
		}
		ib.Children = append(ib.Children, BlockType{Stored: &sb})
		tailStart = rng.End
	}

	if n := len(ib.Children); n > 0 {
		ib.Rng = Range{Start: ib.Children[0].Range().Start, End: ib.Children[n-1].Range().End}
	}
	return nil
}

// Delete recursively deletes every child, continuing past individual
// failures and returning their combination.
func (ib *IndirectBlock) Delete(ctx context.Context, global *chunkdrive.Global) error {
	var errs []error
	for i := range ib.Children {
		if err := ib.Children[i].Delete(ctx, global); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Repair forwards to every child whose range overlaps rng.
func (ib *IndirectBlock) Repair(ctx context.Context, global *chunkdrive.Global, rng Range) error {
	var errs []error
	for i := range ib.Children {
		if _, ok := ib.Children[i].Range().Intersect(rng); !ok {
			continue
		}
		if err := ib.Children[i].Repair(ctx, global, rng); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
