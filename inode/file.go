package inode

import (
	"bytes"
	"context"
	"io"

	"github.com/chunkdrive/chunkdrive"
	"github.com/chunkdrive/chunkdrive/block"
)

// File is an inode whose contents are a block tree.
type File struct {
	Data     block.IndirectBlock `msgpack:"d"`
	Metadata Metadata            `msgpack:"m"`
}

var _ Inode = (*File)(nil)

// CreateFile builds a block tree over data and wraps it with fresh
// Metadata.
func CreateFile(ctx context.Context, global *chunkdrive.Global, data []byte) (File, error) {
	ib, err := block.CreateIndirect(ctx, global, data, 0)
	if err != nil {
		return File{}, err
	}
	return File{Data: ib, Metadata: NewMetadata(BytesSize(len(data)))}, nil
}

// Get streams the file's full contents to w.
func (f *File) Get(ctx context.Context, global *chunkdrive.Global, w io.Writer) error {
	return f.Data.Get(ctx, global, f.Data.Range(), w)
}

// GetBytes is a convenience wrapper around Get for callers that want the
// whole file buffered, e.g. tests and the HTTP front end's small-file path.
func (f *File) GetBytes(ctx context.Context, global *chunkdrive.Global) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Get(ctx, global, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Put overwrites the file's entire contents in place. data must be exactly
// as long as the file already is -- growing or shrinking a file means
// creating a new one and replacing the Directory entry, not putting over
// the old tree.
func (f *File) Put(ctx context.Context, global *chunkdrive.Global, data []byte) error {
	if err := f.Data.Put(ctx, global, f.Data.Range(), data); err != nil {
		return err
	}
	f.Metadata.Touch(BytesSize(len(data)))
	return nil
}

// GetMetadata reports the file's bookkeeping.
func (f *File) GetMetadata() Metadata { return f.Metadata }

// Delete tears down the file's block tree.
func (f *File) Delete(ctx context.Context, global *chunkdrive.Global) error {
	return f.Data.Delete(ctx, global)
}
