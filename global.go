package chunkdrive

import (
	"math/rand"

	"github.com/chunkdrive/chunkdrive/metrics"
	"github.com/chunkdrive/chunkdrive/repair"
)

// Global is the process-wide, immutable-after-load registry of buckets and
// the few knobs that shape how the block engine grows trees. It is handed
// down by reference to every layer above it (block, stored, inode); nothing
// in the core ever mutates it after construction.
type Global struct {
	buckets map[string]*Bucket

	// DirectBlockCount bounds how many Direct children an IndirectBlock
	// holds before overflow is hoisted into a StoredBlock subtree.
	DirectBlockCount int
	// Redundancy is the number of replica copies a DirectBlock keeps. The
	// spec's data model names this per-block ("Redundancy — per-DirectBlock
	// replica count") without saying where the count comes from; this repo
	// resolves that as a Global-level default, same shape as
	// DirectBlockCount, overridable by config.
	Redundancy int
	// RootPath is where the root Directory is persisted.
	RootPath string

	Metrics *metrics.Registry
	Repair  *repair.Queue
}

const defaultDirectBlockCount = 10
const defaultRedundancy = 1

// NewGlobal builds a Global from a fully-constructed bucket set. Pass 0 for
// directBlockCount to use the default of 10, and 0 for redundancy to use the
// default of 1 (no replication beyond the single copy every DirectBlock
// always has).
func NewGlobal(buckets map[string]*Bucket, directBlockCount, redundancy int, rootPath string) *Global {
	if directBlockCount <= 0 {
		directBlockCount = defaultDirectBlockCount
	}
	if redundancy <= 0 {
		redundancy = defaultRedundancy
	}
	if rootPath == "" {
		rootPath = "./root.dat"
	}
	return &Global{
		buckets:          buckets,
		DirectBlockCount: directBlockCount,
		Redundancy:       redundancy,
		RootPath:         rootPath,
	}
}

// GetBucket looks up a bucket by its configured name.
func (g *Global) GetBucket(name string) (*Bucket, bool) {
	b, ok := g.buckets[name]
	return b, ok
}

// ListBuckets returns every configured bucket name, in no particular order.
func (g *Global) ListBuckets() []string {
	names := make([]string, 0, len(g.buckets))
	for name := range g.buckets {
		names = append(names, name)
	}
	return names
}

// RandomBucket picks uniformly among all configured buckets, ignoring size
// and exclusion constraints.
func (g *Global) RandomBucket() (string, bool) {
	return g.NextBucket(0, nil)
}

// NextBucket picks uniformly among buckets whose MaxSize is at least
// minSize and whose name isn't in exclude.
func (g *Global) NextBucket(minSize int, exclude map[string]bool) (string, bool) {
	var candidates []string
	for name, b := range g.buckets {
		if b.MaxSize() < minSize {
			continue
		}
		if exclude != nil && exclude[name] {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.Intn(len(candidates))], true
}
