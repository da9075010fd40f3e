// Package index resolves a file-key to its owning backend scheme and
// native key, backed by an in-memory (optionally persisted) buntdb
// database — the same small-metadata-index shape aistore's own ext/dsort
// and volume packages keep, per SPEC_FULL.md §4.9.
package index

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/buntdb"
)

var ErrNotFound = errors.New("index: file key not found")

// Entry is what a file key resolves to.
type Entry struct {
	Scheme    string `json:"scheme"`     // "s3", "az", "gs", "hdfs", "" for local
	NativeKey string `json:"native_key"` // key passed to the backend, scheme prefix stripped
	FileUID   uint64 `json:"file_uid"`
}

type Index struct {
	db *buntdb.DB
}

// Open opens path (":memory:" for a pure in-memory index) and configures
// a background sync so a persisted index survives a crash with bounded
// data loss.
func Open(path string) (*Index, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	_ = db.SetConfig(buntdb.Config{SyncPolicy: buntdb.EverySecond})
	return &Index{db: db}, nil
}

func (i *Index) Close() error { return i.db.Close() }

func (i *Index) Put(key string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(b), nil)
		return err
	})
}

func (i *Index) Get(key string) (Entry, error) {
	var e Entry
	err := i.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return json.Unmarshal([]byte(v), &e)
	})
	return e, err
}

func (i *Index) Delete(key string) error {
	return i.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
}
