package inode

import (
	"context"
	"errors"

	"github.com/chunkdrive/chunkdrive"
	"github.com/chunkdrive/chunkdrive/stored"
)

// Directory is an inode holding named references to other inodes, each
// behind its own Stored handle so a directory listing never has to
// deserialize its children's bodies.
type Directory struct {
	Children map[string]stored.Stored[InodeType] `msgpack:"c"`
	Metadata Metadata                            `msgpack:"m"`
}

var _ Inode = (*Directory)(nil)

// NewDirectory builds an empty directory.
func NewDirectory() Directory {
	return Directory{
		Children: make(map[string]stored.Stored[InodeType]),
		Metadata: NewMetadata(EntriesSize(0)),
	}
}

// Add stores inode under name. It fails if name is already taken -- callers
// that want to replace an existing entry should Remove or Unlink it first;
// Put refuses a taken name too.
func (d *Directory) Add(ctx context.Context, global *chunkdrive.Global, name string, it InodeType) error {
	if _, exists := d.Children[name]; exists {
		return chunkdrive.NewError(chunkdrive.KindUsage, "directory.add", nil)
	}
	handle, err := stored.Create(ctx, global, it)
	if err != nil {
		return err
	}
	d.Children[name] = handle
	d.Metadata.Touch(EntriesSize(len(d.Children)))
	return nil
}

// Remove deletes the underlying inode and drops its directory entry.
func (d *Directory) Remove(ctx context.Context, global *chunkdrive.Global, name string) error {
	handle, ok := d.Children[name]
	if !ok {
		return chunkdrive.NewError(chunkdrive.KindNotFound, "directory.remove", nil)
	}
	if inner, err := handle.Get(ctx, global); err == nil {
		_ = inner.Delete(ctx, global)
	}
	_ = handle.Delete(ctx, global)
	delete(d.Children, name)
	d.Metadata.Touch(EntriesSize(len(d.Children)))
	return nil
}

// Unlink detaches name from the directory without deleting the underlying
// inode, handing the caller the Stored handle so it can be re-attached
// elsewhere (a move/rename).
func (d *Directory) Unlink(name string) (stored.Stored[InodeType], error) {
	handle, ok := d.Children[name]
	if !ok {
		return stored.Stored[InodeType]{}, chunkdrive.NewError(chunkdrive.KindNotFound, "directory.unlink", nil)
	}
	delete(d.Children, name)
	d.Metadata.Touch(EntriesSize(len(d.Children)))
	return handle, nil
}

// Put re-attaches an existing Stored handle (typically one just produced by
// Unlink on another directory) under name in this one.
func (d *Directory) Put(ctx context.Context, global *chunkdrive.Global, name string, handle stored.Stored[InodeType]) error {
	if _, exists := d.Children[name]; exists {
		return chunkdrive.NewError(chunkdrive.KindUsage, "directory.put", nil)
	}
	d.Children[name] = handle
	d.Metadata.Touch(EntriesSize(len(d.Children)))
	return nil
}

// Get dereferences the inode stored under name.
func (d *Directory) Get(ctx context.Context, global *chunkdrive.Global, name string) (InodeType, error) {
	handle, ok := d.Children[name]
	if !ok {
		return InodeType{}, chunkdrive.NewError(chunkdrive.KindNotFound, "directory.get", nil)
	}
	return handle.Get(ctx, global)
}

// List returns the directory's entry names in no particular order.
func (d *Directory) List() []string {
	names := make([]string, 0, len(d.Children))
	for name := range d.Children {
		names = append(names, name)
	}
	return names
}

// Entry pairs a directory entry's name with its Stored handle, for callers
// that need the handle directly (such as the HTTP front end's listing
// route) without dereferencing every child.
type Entry struct {
	Name   string
	Handle stored.Stored[InodeType]
}

// ListEntries returns every (name, handle) pair in the directory.
func (d *Directory) ListEntries() []Entry {
	entries := make([]Entry, 0, len(d.Children))
	for name, handle := range d.Children {
		entries = append(entries, Entry{Name: name, Handle: handle})
	}
	return entries
}

// GetMetadata reports the directory's bookkeeping.
func (d *Directory) GetMetadata() Metadata { return d.Metadata }

// Delete recursively tears down every child, continuing past individual
// failures and returning their combination.
func (d *Directory) Delete(ctx context.Context, global *chunkdrive.Global) error {
	var errs []error
	for name, handle := range d.Children {
		if inner, err := handle.Get(ctx, global); err == nil {
			if err := inner.Delete(ctx, global); err != nil {
				errs = append(errs, err)
			}
		}
		if err := handle.Delete(ctx, global); err != nil {
			errs = append(errs, err)
		}
		delete(d.Children, name)
	}
	return errors.Join(errs...)
}
