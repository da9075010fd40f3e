package ipc

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// dupCache is a probabilistic guard against a pathological retransmit
// storm re-triggering ACK-queue churn when a peer keeps resending a
// buffer whose id is already behind the connector's expected id
// (spec.md §4.7.4's "id less than expected" branch). It is purely an
// optimization: a false positive only costs one redundant ACK resend, and
// a false negative only costs the normal (correct) ACK-queue path, so
// nothing in the delivery decision depends on it.
type dupCache struct {
	f *cuckoo.Filter
}

func newDupCache() *dupCache { return &dupCache{f: cuckoo.NewFilter(4096)} }

func dupKey(connID uint64, id uint32) []byte {
	var b [12]byte
	binary.LittleEndian.PutUint64(b[0:8], connID)
	binary.LittleEndian.PutUint32(b[8:12], id)
	return b[:]
}

// seen reports whether (connID, id) was already recorded, and records it
// if not.
func (d *dupCache) seen(connID uint64, id uint32) bool {
	h := xxhash.Checksum64(dupKey(connID, id))
	var hb [8]byte
	binary.LittleEndian.PutUint64(hb[:], h)
	if d.f.Lookup(hb[:]) {
		return true
	}
	d.f.Insert(hb[:])
	return false
}

// reset clears the cache, called on reconnect (spec.md §4.7.5 step 3:
// clear reorder heap/ACK queue — the dup cache rides along since a fresh
// connection also resets the id space it keys on).
func (d *dupCache) reset() { d.f = cuckoo.NewFilter(4096) }
