package source

import (
	"bytes"
	"context"
	"io"

	backblaze "gopkg.in/kothar/go-backblaze.v0"

	"github.com/chunkdrive/chunkdrive"
)

// B2 is a Source backed by a Backblaze B2 bucket, descriptors minted as
// random file names the same way Local mints random filenames.
type B2 struct {
	bucket  *backblaze.Bucket
	maxSize int
}

// NewB2 authenticates against B2 with the given credentials and opens
// bucketName.
func NewB2(accountID, keyID, appKey, bucketName string, maxSize int) (*B2, error) {
	creds := backblaze.Credentials{AccountID: accountID, KeyID: keyID, ApplicationKey: appKey}
	if accountID != "" {
		creds.KeyID = ""
	}
	conn, err := backblaze.NewB2(creds)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "b2.new", err)
	}
	bucket, err := conn.Bucket(bucketName)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "b2.new", err)
	}
	if maxSize <= 0 {
		maxSize = defaultObjectStoreMaxSize
	}
	return &B2{bucket: bucket, maxSize: maxSize}, nil
}

var _ chunkdrive.Source = (*B2)(nil)

func (b *B2) MaxSize() int { return b.maxSize }

func (b *B2) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	name, err := randomDescriptor(32)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "b2.create", err)
	}
	if err := b.put(name, []byte{}); err != nil {
		return nil, err
	}
	return chunkdrive.Descriptor(name), nil
}

func (b *B2) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	_, reader, err := b.bucket.DownloadFileByName(string(d))
	if err != nil {
		if b2err, ok := err.(*backblaze.B2Error); ok && b2err.Status == 404 {
			return nil, chunkdrive.NewError(chunkdrive.KindNotFound, "b2.get", err)
		}
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "b2.get", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "b2.get", err)
	}
	return data, nil
}

func (b *B2) put(name string, data []byte) error {
	meta := make(map[string]string)
	_, err := b.bucket.UploadTypedFile(name, "application/octet-stream", meta, bytes.NewReader(data))
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "b2.put", err)
	}
	return nil
}

func (b *B2) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	return b.put(string(d), data)
}

func (b *B2) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	if _, err := b.bucket.HideFile(string(d)); err != nil {
		if b2err, ok := err.(*backblaze.B2Error); ok && b2err.Status == 404 {
			return nil
		}
		return chunkdrive.NewError(chunkdrive.KindTransport, "b2.delete", err)
	}
	return nil
}
