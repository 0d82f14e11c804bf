package transport

import (
	"arenaserver/internal/mapxfer"
	"arenaserver/internal/packer"
	"arenaserver/internal/rcon"
	"arenaserver/internal/wire"
)

// SendMapChange implements client.Transport, §4.G.
func (e *Engine) SendMapChange(clientID int, m *mapxfer.Map) {
	p := packer.New(nil)
	p.AddString(m.Name, 128)
	p.AddInt(int32(m.CRC))
	p.AddInt(m.Size)
	e.send(clientID, true, wire.NetmsgMapChange, p)
}

// SendMapData implements client.Transport, §4.G.
func (e *Engine) SendMapData(clientID int, chunkIndex int32, isLast bool, crc uint32, data []byte) {
	last := int32(0)
	if isLast {
		last = 1
	}
	p := packer.New(nil)
	p.AddInt(last)
	p.AddInt(int32(crc))
	p.AddInt(chunkIndex)
	p.AddInt(int32(len(data)))
	p.AddRaw(data)
	e.send(clientID, true, wire.NetmsgMapData, p)
}

// SendConReady implements client.Transport, §4.H row 5.
func (e *Engine) SendConReady(clientID int) {
	e.send(clientID, true, wire.NetmsgConReady, packer.New(nil))
}

// SendInputTiming implements client.Transport, §4.H row 7.
func (e *Engine) SendInputTiming(clientID int, gameTick int32) {
	p := packer.New(nil)
	p.AddInt(gameTick)
	p.AddInt(0)
	e.send(clientID, false, wire.NetmsgInputTiming, p)
}

// SendRconLine sends one RCON_LINE response, §4.I.
func (e *Engine) SendRconLine(clientID int, line string) {
	p := packer.New(nil)
	p.AddString(line, 512)
	e.send(clientID, true, wire.NetmsgRconLine, p)
}

// SendRconAuthStatus sends the NETMSG_RCON_AUTH_STATUS reply to a
// NETMSG_RCON_AUTH attempt, §4.I.
func (e *Engine) SendRconAuthStatus(clientID int, authed bool) {
	v := int32(0)
	if authed {
		v = 1
	}
	p := packer.New(nil)
	p.AddInt(v)
	p.AddInt(v)
	e.send(clientID, true, wire.NetmsgRconAuthStatus, p)
}

// SendRconCmdAdd implements rcon.Sender, §4.I command dribble.
func (e *Engine) SendRconCmdAdd(clientID int, c rcon.CommandRef) {
	p := packer.New(nil)
	p.AddString(c.Name, 128)
	p.AddString(c.Help, 256)
	p.AddInt(int32(c.AccessLevel))
	e.send(clientID, true, wire.NetmsgRconCmdAdd, p)
}

// SendRconCmdRem implements rcon.Sender, §4.I command dribble.
func (e *Engine) SendRconCmdRem(clientID int, name string) {
	p := packer.New(nil)
	p.AddString(name, 128)
	e.send(clientID, true, wire.NetmsgRconCmdRem, p)
}

// SendPingReply answers NETMSG_PING.
func (e *Engine) SendPingReply(clientID int) {
	e.send(clientID, false, wire.NetmsgPingReply, packer.New(nil))
}
