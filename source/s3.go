package source

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/chunkdrive/chunkdrive"
)

const defaultObjectStoreMaxSize = 5 << 30 // 5 GiB, generous for a single chunk

// S3 is a Source backed by an S3-compatible bucket (AWS S3, Wasabi,
// MinIO, ...), descriptors minted as random keys the way Local mints
// random filenames.
type S3 struct {
	bucket  string
	client  *s3.S3
	maxSize int
}

// NewS3 connects to an S3-compatible endpoint with static credentials.
func NewS3(accessKey, secretKey, bucket, endpoint, region string, maxSize int) *S3 {
	client := s3.New(session.New(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	}))
	if maxSize <= 0 {
		maxSize = defaultObjectStoreMaxSize
	}
	return &S3{bucket: bucket, client: client, maxSize: maxSize}
}

var _ chunkdrive.Source = (*S3)(nil)

func (s *S3) MaxSize() int { return s.maxSize }

func (s *S3) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	key, err := randomDescriptor(32)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "s3.create", err)
	}
	if err := s.put(ctx, key, []byte{}); err != nil {
		return nil, err
	}
	return chunkdrive.Descriptor(key), nil
}

func (s *S3) Get(ctx context.Context, d chunkdrive.Descriptor) ([]byte, error) {
	res, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(d)),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil, chunkdrive.NewError(chunkdrive.KindNotFound, "s3.get", err)
	} else if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "s3.get", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "s3.get", err)
	}
	return data, nil
}

func (s *S3) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "s3.put", err)
	}
	return nil
}

func (s *S3) Put(ctx context.Context, d chunkdrive.Descriptor, data []byte) error {
	return s.put(ctx, string(d), data)
}

func (s *S3) Delete(ctx context.Context, d chunkdrive.Descriptor) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(d)),
	})
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "s3.delete", err)
	}
	return nil
}
