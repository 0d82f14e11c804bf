package snapshot

import (
	"errors"

	"arenaserver/internal/packer"
)

// ErrMalformedDelta is returned by ApplyDelta when the byte stream
// doesn't parse as a well-formed delta (truncated or internally
// inconsistent — a Protocol-class error per §7, the caller drops the
// sender rather than crashing the tick loop).
var ErrMalformedDelta = errors.New("snapshot: malformed delta")

// SizeTable maps an item type to its fixed word count. A type absent
// from the table is "dynamic": CreateDelta writes its length and
// ApplyDelta reads it back from the wire, per §4.D.
type SizeTable map[uint16]int

// CreateDelta produces the byte sequence described in §4.D: a
// removed-items list followed by an added-or-changed-items list, each
// changed item's words delta-encoded against the same item in from
// (implicit zeros for brand-new items). Create(x, x) always encodes to
// zero bytes.
func CreateDelta(from, to *Snapshot, sizes SizeTable) []byte {
	fromIdx := from.index()
	toIdx := to.index()

	var removed []Key
	for k := range fromIdx {
		if _, ok := toIdx[k]; !ok {
			removed = append(removed, k)
		}
	}

	type change struct {
		key  Key
		data []int32
	}
	var changed []change
	for _, it := range to.Items {
		prev, existed := fromIdx[it.Key]
		if existed && equalWords(prev.Data, it.Data) {
			continue
		}
		changed = append(changed, change{key: it.Key, data: it.Data})
	}

	if len(removed) == 0 && len(changed) == 0 {
		return nil
	}

	p := packer.New(nil)

	p.AddInt(int32(len(removed)))
	for _, k := range removed {
		p.AddInt(int32(k.Type))
		p.AddInt(int32(k.ID))
	}

	p.AddInt(int32(len(changed)))
	for _, c := range changed {
		p.AddInt(int32(c.key.Type))
		p.AddInt(int32(c.key.ID))

		fixedSize, isFixed := sizes[c.key.Type]
		if !isFixed {
			p.AddInt(int32(len(c.data)))
		} else {
			_ = fixedSize
		}

		prev := fromIdx[c.key].Data
		for i, w := range c.data {
			var base int32
			if i < len(prev) {
				base = prev[i]
			}
			p.AddInt(w - base)
		}
	}

	return p.Bytes()
}

// ApplyDelta reconstructs `to` from `from` and a delta produced by
// CreateDelta. It is the symmetric inverse: ApplyDelta(from,
// CreateDelta(from, to)) == to.
func ApplyDelta(from *Snapshot, delta []byte, sizes SizeTable) (*Snapshot, error) {
	result := from.index()

	if len(delta) == 0 {
		return from.Clone(), nil
	}

	u := packer.NewUnpacker(delta)

	numRemoved := u.GetInt()
	if u.Error() || numRemoved < 0 {
		return nil, ErrMalformedDelta
	}
	for i := int32(0); i < numRemoved; i++ {
		typ := u.GetInt()
		id := u.GetInt()
		if u.Error() {
			return nil, ErrMalformedDelta
		}
		delete(result, Key{Type: uint16(typ), ID: uint16(id)})
	}

	numChanged := u.GetInt()
	if u.Error() || numChanged < 0 {
		return nil, ErrMalformedDelta
	}
	for i := int32(0); i < numChanged; i++ {
		typ := u.GetInt()
		id := u.GetInt()
		if u.Error() {
			return nil, ErrMalformedDelta
		}
		key := Key{Type: uint16(typ), ID: uint16(id)}

		size := 0
		if fixedSize, isFixed := sizes[key.Type]; isFixed {
			size = fixedSize
		} else {
			n := u.GetInt()
			if u.Error() || n < 0 {
				return nil, ErrMalformedDelta
			}
			size = int(n)
		}

		prev := result[key].Data
		data := make([]int32, size)
		for j := 0; j < size; j++ {
			d := u.GetInt()
			if u.Error() {
				return nil, ErrMalformedDelta
			}
			var base int32
			if j < len(prev) {
				base = prev[j]
			}
			data[j] = base + d
		}
		result[key] = Item{Key: key, Data: data}
	}

	out := &Snapshot{Items: make([]Item, 0, len(result))}
	for _, it := range result {
		out.Items = append(out.Items, it)
	}
	out.Sort()
	return out, nil
}

func equalWords(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
