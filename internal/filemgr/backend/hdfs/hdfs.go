// Package hdfs is the Hadoop HDFS Backend (SPEC_FULL.md §4.9).
package hdfs

import (
	"context"
	"io"

	"github.com/colinmarc/hdfs/v2"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

type Backend struct {
	client *hdfs.Client
}

func New(client *hdfs.Client) *Backend { return &Backend{client: client} }

func (b *Backend) Open(_ context.Context, key string, create bool) (io.ReadCloser, error) {
	if create {
		if _, err := b.client.Stat(key); err != nil {
			w, cerr := b.client.Create(key)
			if cerr != nil {
				return nil, cerr
			}
			_ = w.Close()
		}
	}
	return b.client.Open(key)
}

func (b *Backend) Stat(_ context.Context, key string) (backend.Info, error) {
	fi, err := b.client.Stat(key)
	if err != nil {
		return backend.Info{}, err
	}
	return backend.Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (b *Backend) Remove(_ context.Context, key string) error {
	return b.client.Remove(key)
}
