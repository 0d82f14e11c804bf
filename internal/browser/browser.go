// Package browser answers the two connectionless server-browser probes
// (§4.M): SERVERBROWSE_GETINFO and its extended sibling.
package browser

import (
	"fmt"
	"net"

	"arenaserver/internal/client"
	"arenaserver/internal/instance"
	"arenaserver/internal/packer"
	"arenaserver/internal/wire"
)

// Config is the advertised server identity. It is set when the Prober
// is built or through SetConfig; nothing refreshes it automatically
// when SvName/SvMap change.
type Config struct {
	ServerVersion string
	Name          string
	MapName       string
	GameType      string
	Password      bool
	MaxClients    int
	// Vanilla caps the advertised and truncated client list to
	// VANILLA_MAX_CLIENTS instead of DDNET_MAX_CLIENTS, §4.M.
	Vanilla bool
}

// Prober implements transport.Prober: it owns enough of the live state
// (client pool, instance router) to answer a probe without round
// tripping through the tick loop.
type Prober struct {
	pool   *client.Pool
	router *instance.Router
	cfg    Config
}

// NewProber returns a probe responder bound to the live pool/router.
func NewProber(pool *client.Pool, router *instance.Router, cfg Config) *Prober {
	return &Prober{pool: pool, router: router, cfg: cfg}
}

// SetConfig updates the advertised identity, e.g. after SvName changes.
func (p *Prober) SetConfig(cfg Config) { p.cfg = cfg }

// HandleProbe answers raw if it is a recognized connectionless probe,
// returning whether it handled it.
func (p *Prober) HandleProbe(conn net.PacketConn, addr net.Addr, raw []byte) bool {
	if len(raw) < 9 {
		return false
	}
	var magic [8]byte
	copy(magic[:], raw[:8])
	token := raw[8]

	var extended bool
	switch magic {
	case wire.ServerbrowseGetInfo:
		extended = false
	case wire.ServerbrowseGetInfo64:
		extended = true
	default:
		return false
	}

	conn.WriteTo(p.buildReply(token, extended), addr)
	return true
}

func decimal(n int) string { return fmt.Sprintf("%d", n) }

func (p *Prober) maxClientListCap() int {
	if p.cfg.Vanilla {
		return wire.VanillaMaxClients
	}
	return wire.DDNetMaxClients
}

func (p *Prober) isPlayer(s *client.Slot) bool {
	inst, ok := p.router.Get(s.InstanceID)
	if !ok || inst.Sim == nil {
		return false
	}
	return inst.Sim.IsClientPlayer(s.ID)
}

func (p *Prober) counts() (players, clients int) {
	for i := range p.pool.Slots {
		s := &p.pool.Slots[i]
		if s.State == client.StateEmpty {
			continue
		}
		clients++
		if p.isPlayer(s) {
			players++
		}
	}
	return players, clients
}

func (p *Prober) buildReply(token byte, extended bool) []byte {
	pk := packer.New(nil)

	magic := wire.ServerbrowseInfo
	if extended {
		magic = wire.ServerbrowseInfo64
	}
	pk.AddRaw(magic[:])
	pk.AddString(decimal(int(token)), 4)
	pk.AddString(p.cfg.ServerVersion, 32)

	capN := p.maxClientListCap()
	numPlayers, numClients := p.counts()

	name := p.cfg.Name
	if !extended && p.cfg.MaxClients > wire.VanillaMaxClients {
		name = fmt.Sprintf("%s 64+[%d/%d]", name, numPlayers, p.cfg.MaxClients)
	}
	pk.AddString(name, 64)
	pk.AddString(p.cfg.MapName, 32)
	pk.AddString(p.cfg.GameType, 16)

	flags := 0
	if p.cfg.Password {
		flags |= 1
	}
	pk.AddString(decimal(flags), 4)

	maxPlayers, maxClients := p.cfg.MaxClients, p.cfg.MaxClients
	if numPlayers > capN {
		numPlayers = capN
	}
	if maxPlayers > capN {
		maxPlayers = capN
	}
	if numClients > capN {
		numClients = capN
	}
	if maxClients > capN {
		maxClients = capN
	}
	pk.AddString(decimal(numPlayers), 4)
	pk.AddString(decimal(maxPlayers), 4)
	pk.AddString(decimal(numClients), 4)
	pk.AddString(decimal(maxClients), 4)

	if extended {
		pk.AddInt(0)
	}

	sent := 0
	for i := range p.pool.Slots {
		if sent >= capN {
			break
		}
		s := &p.pool.Slots[i]
		if s.State == client.StateEmpty {
			continue
		}
		pk.AddString(s.Name, wire.MaxNameLength)
		pk.AddString(s.Clan, wire.MaxClanLength)
		pk.AddInt(s.Country)
		pk.AddInt(s.Score)
		isPlayer := int32(0)
		if p.isPlayer(s) {
			isPlayer = 1
		}
		pk.AddInt(isPlayer)
		sent++
	}

	return pk.Bytes()
}
