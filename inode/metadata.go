// Package inode implements the directory tree above the block engine:
// Files and Directories, tagged together as InodeType the same way the
// block engine tags its own three node kinds, plus root persistence.
package inode

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SizeKind distinguishes what a Metadata's size number actually counts.
type SizeKind int

const (
	// SizeEmpty marks a freshly created inode with no size concept yet.
	SizeEmpty SizeKind = iota
	// SizeEntries counts a Directory's children.
	SizeEntries
	// SizeBytes counts a File's logical byte length.
	SizeBytes
)

// Size is the tagged union `{Entries(n) | Bytes(n) | Empty}` the data model
// names, persisted as a single-key map the way BlockType and InodeType are --
// "e" for Entries, "b" for Bytes, and an empty map (no key at all) for
// Empty, since it carries no count. The zero value is Empty, so a zero Size
// never needs to be constructed explicitly.
type Size struct {
	entries *int
	bytes   *int
}

var (
	_ msgpack.CustomEncoder = Size{}
	_ msgpack.CustomDecoder = (*Size)(nil)
)

// EmptySize is the size of an inode that doesn't track one yet.
func EmptySize() Size { return Size{} }

// EntriesSize is a Directory's size: how many children it holds.
func EntriesSize(n int) Size { return Size{entries: &n} }

// BytesSize is a File's size: its logical byte length.
func BytesSize(n int) Size { return Size{bytes: &n} }

// Kind reports which variant s holds.
func (s Size) Kind() SizeKind {
	switch {
	case s.entries != nil:
		return SizeEntries
	case s.bytes != nil:
		return SizeBytes
	default:
		return SizeEmpty
	}
}

// N reports s's count; 0 for Empty.
func (s Size) N() int {
	switch {
	case s.entries != nil:
		return *s.entries
	case s.bytes != nil:
		return *s.bytes
	default:
		return 0
	}
}

func (s Size) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch {
	case s.entries != nil:
		return encodeTagged(enc, "e", *s.entries)
	case s.bytes != nil:
		return encodeTagged(enc, "b", *s.bytes)
	default:
		return enc.EncodeMapLen(0)
	}
}

func (s *Size) DecodeMsgpack(dec *msgpack.Decoder) error {
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
		case "e":
			var v int
			if err := dec.Decode(&v); err != nil {
				return err
			}
			s.entries = &v
		case "b":
			var v int
			if err := dec.Decode(&v); err != nil {
				return err
			}
			s.bytes = &v
		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return err
			}
		}
	}
	return nil
}

// Metadata is the bookkeeping every inode carries: when it was created,
// when it was last modified, and its current size. Ordering matters only
// in that Modified is never older than Created and Size always reflects
// the state as of Modified -- the two are updated together on every
// mutation, never independently.
type Metadata struct {
	Created  int64 `msgpack:"c"`
	Modified int64 `msgpack:"m"`
	Size     Size  `msgpack:"s"`
}

// NewMetadata stamps a fresh Metadata with the current time and size.
func NewMetadata(size Size) Metadata {
	now := time.Now().Unix()
	return Metadata{Created: now, Modified: now, Size: size}
}

// Touch updates Modified and Size to reflect a mutation just made.
func (m *Metadata) Touch(size Size) {
	m.Modified = time.Now().Unix()
	m.Size = size
}
