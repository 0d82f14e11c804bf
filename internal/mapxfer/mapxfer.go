// Package mapxfer implements the chunked map download protocol (§4.G):
// a CRC-keyed map record, chunk slicing, and the per-client download
// cursor that drives both client-pull and high-bandwidth push modes.
package mapxfer

import (
	"arenaserver/internal/wire"
)

// Map is one loaded map's bytes plus the identity a client checks
// against its local copy before downloading, §3.
type Map struct {
	ID    uint32
	Name  string
	CRC   uint32
	Size  int32
	Bytes []byte
}

// NumChunks returns how many MapChunkSize-sized pieces m.Bytes splits
// into, with the final piece possibly shorter.
func NumChunks(m *Map) int {
	if len(m.Bytes) == 0 {
		return 0
	}
	return (len(m.Bytes) + wire.MapChunkSize - 1) / wire.MapChunkSize
}

// Chunk returns the bytes for chunk index, whether it is the final
// (possibly short) chunk, and whether index was in range.
func Chunk(m *Map, index int) (data []byte, isLast bool, ok bool) {
	n := NumChunks(m)
	if index < 0 || index >= n {
		return nil, false, false
	}
	start := index * wire.MapChunkSize
	end := start + wire.MapChunkSize
	if end > len(m.Bytes) {
		end = len(m.Bytes)
	}
	return m.Bytes[start:end], index == n-1, true
}

// RetransmitWindow is how long a client can go without asking for a
// chunk before the push cursor is rewound to retransmit, §4.G.
const RetransmitWindow = wire.TicksPerSecond

// Download is the per-client download cursor referenced from the
// client slot (§3: "per-client map-download cursors"). -1 means
// "hasn't asked/sent anything yet".
type Download struct {
	LastAsk     int32
	LastSent    int32
	LastAskTick int32
}

// NewDownload returns a cursor reset to the start of a transfer, as
// happens on CONNECTING entry and on map reload (§4.L, §5).
func NewDownload() Download {
	return Download{LastAsk: -1, LastSent: -1, LastAskTick: -1}
}

// RequestMapData handles a NETMSG_REQUEST_MAP_DATA for chunkIndex.
// Faulty requests (negative, or past the end of the map) are silently
// dropped, per §4.G — ok reports whether the request was valid.
func (d *Download) RequestMapData(m *Map, chunkIndex int32, currentTick int32) bool {
	if chunkIndex < 0 || int(chunkIndex) >= NumChunks(m) {
		return false
	}
	d.LastAsk = chunkIndex
	d.LastAskTick = currentTick
	return true
}

// ServeOne returns the single chunk to send in client-pull mode: the
// chunk most recently asked for.
func (d *Download) ServeOne(m *Map) (data []byte, index int32, isLast bool, ok bool) {
	data, isLast, ok = Chunk(m, int(d.LastAsk))
	if !ok {
		return nil, 0, false, false
	}
	d.LastSent = d.LastAsk
	return data, d.LastAsk, isLast, true
}

// PushChunks advances the high-bandwidth push cursor and returns the
// indices to send this tick: it keeps lastSent < lastAsk+window, and
// rewinds lastSent back to lastAsk if the client hasn't asked for
// anything in at least RetransmitWindow ticks (§4.G).
func (d *Download) PushChunks(m *Map, window int, currentTick int32) []int32 {
	if d.LastAskTick >= 0 && currentTick-d.LastAskTick >= RetransmitWindow {
		d.LastSent = d.LastAsk
	}

	n := int32(NumChunks(m))
	var out []int32
	for d.LastSent < d.LastAsk+int32(window)-1 && d.LastSent < n-1 {
		d.LastSent++
		out = append(out, d.LastSent)
	}
	return out
}
