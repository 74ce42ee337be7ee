package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore writes documents to a Google Cloud Storage bucket under a prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	if client == nil {
		panic("gcs document store requires client")
	}
	if bucket == "" {
		panic("gcs document store requires bucket")
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, body []byte) (ObjectLocation, error) {
	loc, err := ResolveObjectLocation(s.bucket, s.prefix, key)
	if err != nil {
		return ObjectLocation{}, err
	}

	w := s.client.Bucket(loc.Bucket).Object(loc.FullPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return ObjectLocation{}, fmt.Errorf("write object %s: %w", loc, err)
	}
	if err := w.Close(); err != nil {
		return ObjectLocation{}, fmt.Errorf("close object %s: %w", loc, err)
	}
	return loc, nil
}

// Check verifies the bucket exists and the prefix can be listed.
func (s *GCSStore) Check(ctx context.Context) error {
	bkt := s.client.Bucket(s.bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}

	// List at most one object to validate access to the prefix; empty is fine.
	it := bkt.Objects(ctx, &storage.Query{Prefix: s.prefix})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("list prefix: %w", err)
	}
	return nil
}

var _ DocumentStore = (*GCSStore)(nil)
