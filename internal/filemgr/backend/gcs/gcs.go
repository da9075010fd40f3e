// Package gcs is the Google Cloud Storage Backend (SPEC_FULL.md §4.9).
package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

type Backend struct {
	Bucket string
	client *storage.Client
}

func New(bucket string, client *storage.Client) *Backend {
	return &Backend{Bucket: bucket, client: client}
}

func (b *Backend) obj(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.Bucket).Object(key)
}

func (b *Backend) Open(ctx context.Context, key string, _ bool) (io.ReadCloser, error) {
	return b.obj(key).NewReader(ctx)
}

func (b *Backend) Stat(ctx context.Context, key string) (backend.Info, error) {
	attrs, err := b.obj(key).Attrs(ctx)
	if err != nil {
		return backend.Info{}, err
	}
	return backend.Info{Size: attrs.Size, ModTime: attrs.Updated}, nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	return b.obj(key).Delete(ctx)
}
