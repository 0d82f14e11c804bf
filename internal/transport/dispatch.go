package transport

import (
	"net"

	"arenaserver/internal/ban"
	"arenaserver/internal/client"
	"arenaserver/internal/metrics"
	"arenaserver/internal/packer"
	"arenaserver/internal/wire"
)

// HandleDatagram is the entry point for one inbound UDP datagram,
// §4.F. Connectionless probes are routed to the browser reply before
// anything else; everything else is dispatched by client state.
func (e *Engine) HandleDatagram(addr net.Addr, raw []byte) {
	metrics.BytesReceivedTotal.Add(float64(len(raw)))

	if len(raw) >= 8 && e.prober != nil {
		var magic [8]byte
		copy(magic[:], raw[:8])
		if magic == wire.ServerbrowseGetInfo || magic == wire.ServerbrowseGetInfo64 {
			if e.prober.HandleProbe(e.conn, addr, raw) {
				return
			}
		}
	}

	if len(raw) < 1 {
		return
	}
	vital := raw[0]&VitalFlag != 0
	_ = vital
	payload := raw[1:]

	u := packer.NewUnpacker(payload)
	msgID, system := packer.DecodeMsgID(u)
	if u.Error() {
		return
	}

	id, known := e.byAddr[addr.String()]
	if !known {
		var err error
		id, err = e.Accept(addr, true)
		if err != nil {
			return
		}
	}

	s := e.pool.Get(id)
	if s == nil || s.State == client.StateEmpty {
		return
	}

	if e.checkTrafficOverload(s, addr, len(raw)) {
		return
	}

	if !system {
		if sim := e.simFor(s.InstanceID); sim != nil {
			sim.OnMessage(id, msgID, u)
		}
		return
	}

	switch msgID {
	case wire.NetmsgInfo:
		e.handleInfo(s, u)
	case wire.NetmsgRequestMapData:
		e.handleRequestMapData(s, u)
	case wire.NetmsgReady:
		s.Ready(e, e.hooksFor(id))
	case wire.NetmsgEnterGame:
		s.EnterGame(e.hooksFor(id))
	case wire.NetmsgInput:
		e.handleInput(s, u)
	case wire.NetmsgRconAuth:
		e.handleRconAuth(s, u, addr)
	case wire.NetmsgRconCmd:
		e.handleRconCmd(s, u)
	case wire.NetmsgPing:
		e.SendPingReply(id)
	}
}

// checkTrafficOverload folds n bytes into s's traffic EWMA and, if it
// now exceeds SvNetlimit, bans and drops the client, §7's Overload
// class ("traffic EWMA > limit -> 10-minute ban") / §9's formula
// resolution. Reports whether the client was dropped, so the caller
// can stop processing this datagram.
func (e *Engine) checkTrafficOverload(s *client.Slot, addr net.Addr, n int) bool {
	if e.traffic == nil {
		return false
	}
	ewma, over := e.traffic.Record(s.ID, n)
	s.TrafficBytesPerSec = ewma
	if !over {
		return false
	}
	caller := ban.Caller{ClientID: s.ID, Addr: addrIP(addr), AuthLevel: s.AuthLevel}
	reason := "Traffic limit exceeded"
	e.bans.BanAddr(addrIP(addr), e.OverloadBanSeconds, reason, true, caller, e.ConnectedClients(), e.now())
	e.Drop(s.ID, reason)
	return true
}

func (e *Engine) handleInfo(s *client.Slot, u *packer.Unpacker) {
	version := u.GetString(packer.SanitizeCC)
	password := u.GetString(packer.SanitizeCC)
	inst, ok := e.router.Get(0)
	if !ok {
		return
	}
	ok, reason := s.HandleInfo(version, password, e.ServerVersion, e.ServerPassword, e, inst.Map)
	if !ok {
		e.Drop(s.ID, reason)
	}
}

func (e *Engine) handleRequestMapData(s *client.Slot, u *packer.Unpacker) {
	chunkIndex := u.GetInt()
	inst, ok := e.router.Get(s.InstanceID)
	if !ok {
		return
	}
	s.RequestMapData(chunkIndex, e.currentTick, inst.Map, e)
}

func (e *Engine) handleInput(s *client.Slot, u *packer.Unpacker) {
	ack := u.GetInt() // tick of the last snapshot the client applied
	gameTick := u.GetInt()
	size := u.GetInt()
	if size < 0 || size > wire.MaxInputSize {
		return
	}
	words := make([]int32, size)
	for i := range words {
		words[i] = u.GetInt()
	}
	if u.Error() {
		return
	}
	if ack >= -1 {
		s.LastAckedSnapshotTick = ack
	}
	s.HandleInput(gameTick, words, e)
}

func (e *Engine) handleRconAuth(s *client.Slot, u *packer.Unpacker, addr net.Addr) {
	password := u.GetString(packer.SanitizeCC)
	out := e.rcon.Auth(s, password)
	e.SendRconAuthStatus(s.ID, out.Success)
	if out.Success {
		if e.dribbler != nil {
			e.dribbler.BeginStreaming(s.ID)
		}
		return
	}

	e.SendRconLine(s.ID, out.Message)
	if out.ExceededTries {
		caller := ban.Caller{ClientID: s.ID, Addr: addrIP(addr), AuthLevel: s.AuthLevel}
		reason := "Too many remote console authentication tries"
		e.bans.BanAddr(addrIP(addr), e.RconBanSeconds, reason, true, caller, e.ConnectedClients(), e.now())
		e.Drop(s.ID, reason)
	}
}

func (e *Engine) handleRconCmd(s *client.Slot, u *packer.Unpacker) {
	if s.AuthLevel == wire.AuthNone || e.table == nil {
		return
	}
	line := u.GetString(packer.SanitizeNone)
	end := e.rcon.BeginCommand(s.ID, s.AuthLevel)
	resp := e.table.Execute(line, s.AuthLevel)
	end()
	if resp != "" {
		e.SendRconLine(s.ID, resp)
	}
}
