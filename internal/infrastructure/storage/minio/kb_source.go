package minio

import (
	"context"
	"fmt"
)

// KBSource reads the knowledge base document from a bucket. It satisfies
// lab_kb.Source.
type KBSource struct {
	client *Client
	bucket string
	object string
}

// NewKBSource returns a source for bucket/object.
func NewKBSource(client *Client, bucket, object string) *KBSource {
	return &KBSource{client: client, bucket: bucket, object: object}
}

func (s *KBSource) Name() string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, s.object)
}

func (s *KBSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.client.Fetch(ctx, s.bucket, s.object)
}

// Publish uploads a knowledge base document to the source location.
func (s *KBSource) Publish(ctx context.Context, doc []byte) error {
	_, err := s.client.Put(ctx, s.bucket, s.object, doc, "application/yaml")
	return err
}
