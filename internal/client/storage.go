package client

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// StorageClient stores sample audio in a Google Cloud Storage bucket.
type StorageClient struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewStorageClient creates a GCS client bound to bucketName.
func NewStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*StorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &StorageClient{
		client: client,
		bucket: client.Bucket(bucketName),
		name:   bucketName,
	}, nil
}

// Close releases the client's connections.
func (c *StorageClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Put writes data to objectName and returns its public URL.
func (c *StorageClient) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	w := c.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = immutableCacheControl
	// Samples are small; a single request avoids resumable-upload overhead.
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s to GCS: %w", objectName, err)
	}
	return url.JoinPath("https://storage.googleapis.com", c.name, objectName)
}

// Ping checks that the bucket is reachable.
func (c *StorageClient) Ping(ctx context.Context) error {
	_, err := c.bucket.Attrs(ctx)
	return err
}
