// Package snapshot implements the per-tick world-state representation
// (§3), its bounded per-client history ring (§4.C), the delta codec
// between two snapshots (§4.D) and the item-id quarantine pool
// (§4.E). None of these types know anything about UDP; they are pure
// in-memory structures the tick loop and transport wire together.
package snapshot

import "sort"

// Key identifies one item within a snapshot. A snapshot may contain at
// most one item per Key — §3's uniqueness invariant.
type Key struct {
	Type uint16
	ID   uint16
}

// Item is one entity's worth of i32 words, keyed by (type, id).
type Item struct {
	Key
	Data []int32
}

// Snapshot is an ordered sequence of items. Ordering is kept
// deterministic (sorted by Key, see Sort) so two snapshots with the
// same contents always serialize identically.
type Snapshot struct {
	Items []Item
}

// Empty returns the identity snapshot used as "no prior snapshot" —
// the empty snapshot is the identity of the delta per §3.
func Empty() *Snapshot {
	return &Snapshot{}
}

// Clone returns a deep copy so callers can keep building the returned
// snapshot without aliasing the source's backing arrays.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{Items: make([]Item, len(s.Items))}
	for i, it := range s.Items {
		data := make([]int32, len(it.Data))
		copy(data, it.Data)
		out.Items[i] = Item{Key: it.Key, Data: data}
	}
	return out
}

// Add appends an item at the end; it does not re-sort, so a caller
// adding keys out of order calls Sort afterwards. It is the caller's
// responsibility not to add a duplicate Key — the engine
// that builds a snapshot from live simulation state owns uniqueness,
// exactly as §3 specifies.
func (s *Snapshot) Add(key Key, data []int32) {
	s.Items = append(s.Items, Item{Key: key, Data: data})
}

// Sort normalizes item order. Call once after building a snapshot from
// an unordered source (e.g. a map keyed by entity id).
func (s *Snapshot) Sort() {
	sort.Slice(s.Items, func(i, j int) bool {
		if s.Items[i].Type != s.Items[j].Type {
			return s.Items[i].Type < s.Items[j].Type
		}
		return s.Items[i].ID < s.Items[j].ID
	})
}

func (s *Snapshot) index() map[Key]Item {
	m := make(map[Key]Item, len(s.Items))
	for _, it := range s.Items {
		m[it.Key] = it
	}
	return m
}

// Get returns the item for key, if present.
func (s *Snapshot) Get(key Key) (Item, bool) {
	for _, it := range s.Items {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}
