// Package backend defines the pluggable remote-object provider contract
// FileManager dispatches to (SPEC_FULL.md §4.9 domain-stack expansion).
package backend

import (
	"context"
	"io"
	"time"
)

// Info is the subset of stat metadata every backend can report cheaply.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Backend is implemented by every concrete storage provider FileManager
// can route a file-key to.
type Backend interface {
	Open(ctx context.Context, key string, create bool) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	Remove(ctx context.Context, key string) error
}
