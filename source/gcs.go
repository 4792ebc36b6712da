package source

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"

	"github.com/chunkdrive/chunkdrive"
)

// GCS is a Source backed by a Google Cloud Storage bucket, descriptors
// minted as random object names.
type GCS struct {
	bucket  *storage.BucketHandle
	maxSize int
}

// NewGCS opens bucketName, optionally pointing GOOGLE_APPLICATION_CREDENTIALS
// at credentialsPath first.
func NewGCS(ctx context.Context, bucketName, credentialsPath string, maxSize int) (*GCS, error) {
	if credentialsPath != "" {
		if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", credentialsPath); err != nil {
			return nil, chunkdrive.NewError(chunkdrive.KindUsage, "gcs.new", err)
		}
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "gcs.new", err)
	}
	if maxSize <= 0 {
		maxSize = defaultObjectStoreMaxSize
	}
	return &GCS{bucket: client.Bucket(bucketName), maxSize: maxSize}, nil
}

var _ chunkdrive.Source = (*GCS)(nil)

func (g *GCS) MaxSize() int { return g.maxSize }

func (g *GCS) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	name, err := randomDescriptor(32)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "gcs.create", err)
	}
	if err := g.put(ctx, name, []byte{}); err != nil {
		return nil, err
	}
	return chunkdrive.Descriptor(name), nil
}

func (g *GCS) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	r, err := g.bucket.Object(string(d)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return nil, chunkdrive.NewError(chunkdrive.KindNotFound, "gcs.get", err)
	} else if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "gcs.get", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "gcs.get", err)
	}
	return data, nil
}

func (g *GCS) put(ctx context.Context, name string, data []byte) error {
	w := g.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "gcs.put", err)
	}
	if err := w.Close(); err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "gcs.put", err)
	}
	return nil
}

func (g *GCS) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	return g.put(ctx, string(d), data)
}

func (g *GCS) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	if err := g.bucket.Object(string(d)).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return chunkdrive.NewError(chunkdrive.KindTransport, "gcs.delete", err)
	}
	return nil
}
