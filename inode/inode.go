package inode

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chunkdrive/chunkdrive"
)

// Inode is the contract shared by File and Directory: every node in the
// tree can report its own bookkeeping and tear itself down.
type Inode interface {
	GetMetadata() Metadata
	Delete(ctx context.Context, global *chunkdrive.Global) error
}

// InodeType is the tagged union of File and Directory, the top of the tree
// every Directory's children point at through a Stored handle. Exactly one
// of File or Directory is non-nil.
type InodeType struct {
	File      *File
	Directory *Directory
}

var (
	_ Inode                 = InodeType{}
	_ msgpack.CustomEncoder = InodeType{}
	_ msgpack.CustomDecoder = (*InodeType)(nil)
)

func (it InodeType) inner() Inode {
	switch {
	case it.File != nil:
		return it.File
	case it.Directory != nil:
		return it.Directory
	default:
		return nil
	}
}

func (it InodeType) GetMetadata() Metadata {
	if in := it.inner(); in != nil {
		return in.GetMetadata()
	}
	return Metadata{}
}

func (it InodeType) Delete(ctx context.Context, global *chunkdrive.Global) error {
	if in := it.inner(); in != nil {
		return in.Delete(ctx, global)
	}
	return nil
}

// EncodeMsgpack writes InodeType as a single-key map tagged "f" for a File
// or "d" for a Directory, mirroring the data model's InodeType tag.
func (it InodeType) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch {
	case it.File != nil:
		return encodeTagged(enc, "f", it.File)
	case it.Directory != nil:
		return encodeTagged(enc, "d", it.Directory)
	default:
		return fmt.Errorf("inode: cannot encode empty InodeType")
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

func (it *InodeType) DecodeMsgpack(dec *msgpack.Decoder) error {
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
		case "f":
			var f File
			if err := dec.Decode(&f); err != nil {
				return err
			}
			it.File = &f
		case "d":
			var d Directory
			if err := dec.Decode(&d); err != nil {
				return err
			}
			it.Directory = &d
		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return err
			}
		}
	}
	return nil
}
