package transport

import (
	"arenaserver/internal/packer"
	"arenaserver/internal/wire"
)

// SendSnapEmpty tells a client its delta against deltaTickDistance
// ticks ago was empty, §4.D/§4.L.
func (e *Engine) SendSnapEmpty(clientID int, tick, deltaTickDistance int32) {
	p := packer.New(nil)
	p.AddInt(tick)
	p.AddInt(deltaTickDistance)
	e.send(clientID, false, wire.NetmsgSnapEmpty, p)
}

// SendSnapSingle sends a delta that fits in one packet, §4.D.
func (e *Engine) SendSnapSingle(clientID int, tick, deltaTickDistance int32, crc uint32, payload []byte) {
	p := packer.New(nil)
	p.AddInt(tick)
	p.AddInt(deltaTickDistance)
	p.AddInt(int32(crc))
	p.AddInt(int32(len(payload)))
	p.AddRaw(payload)
	e.send(clientID, false, wire.NetmsgSnapSingle, p)
}

// SendSnap sends one chunk of a multi-packet delta, §4.D: tick,
// delta-tick-distance, total packet count, this chunk's index, the
// whole payload's crc, and the chunk bytes themselves.
func (e *Engine) SendSnap(clientID int, tick, deltaTickDistance, numPackets, index int32, crc uint32, chunk []byte) {
	p := packer.New(nil)
	p.AddInt(tick)
	p.AddInt(deltaTickDistance)
	p.AddInt(numPackets)
	p.AddInt(index)
	p.AddInt(int32(crc))
	p.AddInt(int32(len(chunk)))
	p.AddRaw(chunk)
	e.send(clientID, false, wire.NetmsgSnap, p)
}
