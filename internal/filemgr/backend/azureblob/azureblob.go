// Package azureblob is the Azure Blob Storage Backend (SPEC_FULL.md §4.9).
package azureblob

import (
	"context"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

type Backend struct {
	Container string
	client    *azblob.Client
}

func New(container string, client *azblob.Client) *Backend {
	return &Backend{Container: container, client: client}
}

func (b *Backend) Open(ctx context.Context, key string, _ bool) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, b.Container, key, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *Backend) Stat(ctx context.Context, key string) (backend.Info, error) {
	props, err := b.client.ServiceClient().NewContainerClient(b.Container).NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		return backend.Info{}, err
	}
	info := backend.Info{}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		info.ModTime = *props.LastModified
	} else {
		info.ModTime = time.Time{}
	}
	return info, nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	_, err := b.client.DeleteBlob(ctx, b.Container, key, nil)
	return err
}
