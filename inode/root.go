package inode

import (
	"bytes"
	"log"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chunkdrive/chunkdrive"
)

// LoadRoot reads the root Directory from global.RootPath. A missing file is
// treated as a brand new, empty filesystem. A file that exists but fails to
// deserialize is treated as corrupt: this repo follows the upstream
// project's own local_wal.go stance of logging loudly and replacing rather
// than attempting a partial recovery merge, so the corrupt file is removed
// and an empty Directory is handed back instead of erroring.
func LoadRoot(global *chunkdrive.Global) (*Directory, error) {
	data, err := os.ReadFile(global.RootPath)
	if err != nil {
		if os.IsNotExist(err) {
			d := NewDirectory()
			return &d, nil
		}
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "root.load", err)
	}

	var d Directory
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("msgpack")
	if err := dec.Decode(&d); err != nil {
		log.Printf("inode: root at %s is corrupt (%v); discarding and starting over", global.RootPath, err)
		if rmErr := os.Remove(global.RootPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("inode: failed to remove corrupt root at %s: %v", global.RootPath, rmErr)
		}
		fresh := NewDirectory()
		return &fresh, nil
	}
	return &d, nil
}

// SaveRoot writes d to global.RootPath, replacing whatever was there.
func SaveRoot(global *chunkdrive.Global, d *Directory) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("msgpack")
	enc.UseArrayEncodedStructs(false)
	if err := enc.Encode(d); err != nil {
		return chunkdrive.NewError(chunkdrive.KindShape, "root.save", err)
	}
	if err := os.WriteFile(global.RootPath, buf.Bytes(), 0644); err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "root.save", err)
	}
	return nil
}
