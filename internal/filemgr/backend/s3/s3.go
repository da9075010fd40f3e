// Package s3 is the AWS S3 Backend, streamed through the manager
// package's downloader so a large object still arrives as a plain
// io.ReadCloser the FileManager pumps into its Sink (SPEC_FULL.md §4.9).
package s3

import (
	"bytes"
	"context"
	"io"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

type Backend struct {
	Bucket string
	client *awss3.Client
	dl     *manager.Downloader
}

func New(bucket string, client *awss3.Client) *Backend {
	return &Backend{Bucket: bucket, client: client, dl: manager.NewDownloader(client)}
}

func (b *Backend) Open(ctx context.Context, key string, _ bool) (io.ReadCloser, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := b.dl.Download(ctx, buf, &awss3.GetObjectInput{
		Bucket: &b.Bucket,
		Key:    &key,
	}); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (b *Backend) Stat(ctx context.Context, key string) (backend.Info, error) {
	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &b.Bucket, Key: &key})
	if err != nil {
		return backend.Info{}, err
	}
	info := backend.Info{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &b.Bucket, Key: &key})
	return err
}
