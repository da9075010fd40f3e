// Package handle implements the process-wide (index, uid) addressing scheme
// described in SPEC_FULL.md §3-4.1: a full id packs a service index in its
// high bits and an object index in its low bits, and a generation counter
// (uid) disambiguates slot reuse across time.
package handle

import "fmt"

// Layout controls the high/low bit split of a FullID. The zero value has
// no bits in either part; Default below holds the usual split of 8 high
// bits for the service index and 24 low bits for the object index.
type Layout struct {
	ServiceBits uint
	IndexBits   uint
}

// Default is the (8, 24) split named in SPEC_FULL.md §3.
var Default = Layout{ServiceBits: 8, IndexBits: 24}

func (l Layout) indexMask() uint32 { return (uint32(1) << l.IndexBits) - 1 }

// Encode packs a service index and an object index into one FullID.
func (l Layout) Encode(serviceIdx, objIdx uint32) FullID {
	return FullID(serviceIdx)<<l.IndexBits | FullID(objIdx&l.indexMask())
}

func (l Layout) DecodeService(id FullID) uint32 { return uint32(id >> l.IndexBits) }
func (l Layout) DecodeIndex(id FullID) uint32    { return uint32(id) & l.indexMask() }

// FullID is the bit-packed (service, object) address. It alone is not a
// safe reference across time: pair it with a UID to get a Handle.
type FullID uint32

// UID is the generation counter of a slot: it is bumped each time the slot
// is recycled, so a stale Handle can always be detected.
type UID uint32

// Handle names an object across threads and across time. Equality of two
// handles implies they name the same (service, object, generation) tuple.
type Handle struct {
	Full FullID
	UID  UID
}

func (h Handle) String() string {
	return fmt.Sprintf("%08x/%d", uint32(h.Full), uint32(h.UID))
}

func (h Handle) IsZero() bool { return h.Full == 0 && h.UID == 0 }

// Resolver is satisfied by a Service (or anything else that can check a
// handle's uid against the current occupant of its slot) and lets callers
// who only hold a handle.Handle perform the lookup without importing the
// service package (which would create an import cycle, since service
// depends on handle).
type Resolver interface {
	// Lookup returns ok=false (never an error) if the handle's uid no
	// longer matches the slot's current occupant or the slot is empty.
	// Per SPEC_FULL.md §4.1, Gone MUST propagate as a no-op: callers must
	// not treat a false return as an exceptional condition.
	Lookup(h Handle) (obj any, ok bool)
}
