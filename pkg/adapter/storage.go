package adapter

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// CloudStorage stores document bodies as objects in a Cloud Storage
// bucket, keyed by version ID. It satisfies the store's BlobStore
// contract.
type CloudStorage struct {
	bucketName string
	client     *storage.Client
}

// NewCloudStorage creates a new Cloud Storage blob store
func NewCloudStorage(ctx context.Context, bucketName string) (*CloudStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &CloudStorage{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *CloudStorage) Put(ctx context.Context, key string, body []byte) error {
	obj := s.client.Bucket(s.bucketName).Object(key)
	w := obj.NewWriter(ctx)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write to storage", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize storage object", goerr.V("key", key))
	}
	return nil
}

func (s *CloudStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object body", goerr.V("key", key))
	}
	return body, nil
}
