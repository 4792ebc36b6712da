package block

import (
	"bytes"
	"context"
	"crypto/md5"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/chunkdrive/chunkdrive"
	"github.com/chunkdrive/chunkdrive/repair"
)

// BucketRef names one replica of a DirectBlock's data: the bucket it lives
// in and the descriptor it was minted under.
type BucketRef struct {
	Bucket     string                `msgpack:"b"`
	Descriptor chunkdrive.Descriptor `msgpack:"d"`
}

// DirectBlock is a leaf node: a contiguous run of plaintext bytes, fanned
// out across one or more bucket replicas, verified by an MD5 hash of the
// plaintext. MD5 is used here only as a cheap corruption check against
// accidental bit rot, not as a security primitive -- same rationale the
// upstream source gave for picking it.
type DirectBlock struct {
	Rng     Range       `msgpack:"r"`
	Sources []BucketRef `msgpack:"s"`
	Hash    []byte      `msgpack:"h"`
}

var _ Block = (*DirectBlock)(nil)

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

func (d *DirectBlock) Range() Range { return d.Rng }

// CreateDirect clips data to the first bucket's capacity, writes it to a
// primary replica and redundancy-1 additional replicas, and returns the
// block along with how many bytes it consumed. A failure at any point during
// creation unwinds every descriptor already minted -- unlike Put, which
// tolerates partial replica failure, a failed create leaves nothing behind.
func CreateDirect(ctx context.Context, global *chunkdrive.Global, data []byte, start int) (DirectBlock, int, error) {
	redundancy := global.Redundancy
	if redundancy < 1 {
		redundancy = 1
	}

	b1Name, ok := global.RandomBucket()
	if !ok {
		return DirectBlock{}, 0, chunkdrive.NewError(chunkdrive.KindExhaustion, "direct_block.create", nil)
	}
	b1, _ := global.GetBucket(b1Name)

	n := len(data)
	if max := b1.MaxSize(); n > max {
		n = max
	}
	clipped := data[:n]
	if len(clipped) == 0 {
		return DirectBlock{}, 0, chunkdrive.NewError(chunkdrive.KindUsage, "direct_block.create", nil)
	}

	var created []BucketRef
	rollback := func() {
		for _, ref := range created {
			if bck, ok := global.GetBucket(ref.Bucket); ok {
				_ = bck.Delete(ctx, ref.Descriptor)
			}
		}
	}

	d1, err := b1.Create(ctx)
	if err != nil {
		return DirectBlock{}, 0, err
	}
	if err := b1.Put(ctx, d1, clipped); err != nil {
		_ = b1.Delete(ctx, d1)
		return DirectBlock{}, 0, err
	}
	created = append(created, BucketRef{Bucket: b1Name, Descriptor: d1})

	// Pick the remaining replicas' buckets up front (cheap, in-memory) so the
	// actual create+put I/O for each can fan out concurrently afterward.
	exclude := map[string]bool{b1Name: true}
	names := make([]string, 0, redundancy-1)
	for i := 1; i < redundancy; i++ {
		name, ok := global.NextBucket(len(clipped), exclude)
		if !ok {
			rollback()
			return DirectBlock{}, 0, chunkdrive.NewError(chunkdrive.KindExhaustion, "direct_block.create", nil)
		}
		names = append(names, name)
		exclude[name] = true
	}

	refs := make([]BucketRef, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			bN, _ := global.GetBucket(name)
			dN, err := bN.Create(gctx)
			if err != nil {
				return err
			}
			if err := bN.Put(gctx, dN, clipped); err != nil {
				_ = bN.Delete(gctx, dN)
				return err
			}
			refs[i] = BucketRef{Bucket: name, Descriptor: dN}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, ref := range refs {
			if ref.Bucket == "" {
				continue
			}
			if bck, ok := global.GetBucket(ref.Bucket); ok {
				_ = bck.Delete(ctx, ref.Descriptor)
			}
		}
		rollback()
		return DirectBlock{}, 0, err
	}
	created = append(created, refs...)

	return DirectBlock{
		Rng:     Range{Start: start, End: start + len(clipped)},
		Sources: created,
		Hash:    md5Sum(clipped),
	}, len(clipped), nil
}

// fetchVerified tries every source in order and returns the first replica
// whose contents hash-match. Any replica that fails to fetch or fails its
// hash check is reported to global.Repair before moving on to the next one.
func (d *DirectBlock) fetchVerified(ctx context.Context, global *chunkdrive.Global) ([]byte, error) {
	var lastErr error
	for _, src := range d.Sources {
		bck, ok := global.GetBucket(src.Bucket)
		if !ok {
			continue
		}
		data, err := bck.Get(ctx, src.Descriptor)
		if err != nil {
			_ = global.Repair.Enqueue(repair.Entry{
				Bucket:     src.Bucket,
				Descriptor: src.Descriptor,
				Hash:       d.Hash,
				Range:      [2]int{d.Rng.Start, d.Rng.End},
			})
			lastErr = err
			continue
		}
		if !bytes.Equal(md5Sum(data), d.Hash) {
			_ = global.Repair.Enqueue(repair.Entry{
				Bucket:     src.Bucket,
				Descriptor: src.Descriptor,
				Hash:       d.Hash,
				Range:      [2]int{d.Rng.Start, d.Rng.End},
			})
			lastErr = chunkdrive.NewError(chunkdrive.KindIntegrity, "direct_block.get", nil)
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = chunkdrive.NewError(chunkdrive.KindIntegrity, "direct_block.get", nil)
	}
	return nil, lastErr
}

// Get writes the overlap of rng with the block's own range to w. If rng
// doesn't touch this block at all, Get is a no-op -- IndirectBlock.Get
// forwards rng to every child, overlapping or not, and relies on this.
func (d *DirectBlock) Get(ctx context.Context, global *chunkdrive.Global, rng Range, w io.Writer) error {
	overlap, ok := d.Rng.Intersect(rng)
	if !ok {
		return nil
	}
	data, err := d.fetchVerified(ctx, global)
	if err != nil {
		return err
	}
	slice := data[overlap.Start-d.Rng.Start : overlap.End-d.Rng.Start]
	_, err = w.Write(slice)
	return err
}

// Put overwrites the block's entire span; rng is expected to exactly match
// Range() and len(data) must equal Range().Len(). Writes fan out to every
// replica; as long as one succeeds the block survives with a recomputed
// hash, but replicas that failed are left stale and queued for repair.
func (d *DirectBlock) Put(ctx context.Context, global *chunkdrive.Global, rng Range, data []byte) error {
	if rng != d.Rng || len(data) != d.Rng.Len() {
		return chunkdrive.NewError(chunkdrive.KindUsage, "direct_block.put", nil)
	}

	results := make([]error, len(d.Sources))
	var g errgroup.Group
	for i, src := range d.Sources {
		i, src := i, src
		g.Go(func() error {
			bck, ok := global.GetBucket(src.Bucket)
			if !ok {
				results[i] = chunkdrive.NewError(chunkdrive.KindNotFound, "direct_block.put", nil)
				return nil
			}
			if err := bck.Put(ctx, src.Descriptor, data); err != nil {
				results[i] = err
				_ = global.Repair.Enqueue(repair.Entry{
					Bucket:     src.Bucket,
					Descriptor: src.Descriptor,
					Hash:       d.Hash,
					Range:      [2]int{d.Rng.Start, d.Rng.End},
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, err := range results {
		if err != nil {
			failures++
		}
	}
	if failures == len(d.Sources) {
		return chunkdrive.NewError(chunkdrive.KindTransport, "direct_block.put", nil)
	}
	d.Hash = md5Sum(data)
	return nil
}

// Delete removes every replica, best-effort. Individual source failures are
// swallowed -- a DirectBlock that's half-deleted is still considered gone,
// matching the core's "delete is best-effort" stance.
func (d *DirectBlock) Delete(ctx context.Context, global *chunkdrive.Global) error {
	for _, src := range d.Sources {
		bck, ok := global.GetBucket(src.Bucket)
		if !ok {
			continue
		}
		_ = bck.Delete(ctx, src.Descriptor)
	}
	return nil
}

// Repair re-derives one verified copy of the data and re-writes it to every
// replica whose current contents don't hash-match. It fails only if no
// replica verifies at all.
func (d *DirectBlock) Repair(ctx context.Context, global *chunkdrive.Global, rng Range) error {
	good, err := d.fetchVerified(ctx, global)
	if err != nil {
		return err
	}
	for _, src := range d.Sources {
		bck, ok := global.GetBucket(src.Bucket)
		if !ok {
			continue
		}
		data, err := bck.Get(ctx, src.Descriptor)
		if err == nil && bytes.Equal(md5Sum(data), d.Hash) {
			continue
		}
		_ = bck.Put(ctx, src.Descriptor, good)
	}
	return nil
}
