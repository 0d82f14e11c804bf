package rcon

import (
	"arenaserver/internal/client"
	"arenaserver/internal/wire"
)

// Op distinguishes an incremental command-list add from a remove.
type Op int

const (
	OpAdd Op = iota
	OpRem
)

type queuedCmd struct {
	op  Op
	cmd CommandRef
}

// Sender is the transport boundary the dribbler pushes RCON_CMD_ADD /
// RCON_CMD_REM messages through.
type Sender interface {
	SendRconCmdAdd(clientID int, c CommandRef)
	SendRconCmdRem(clientID int, name string)
}

// Dribbler streams each authed client's filtered command list a few
// entries per tick instead of all at once, and carries incremental
// ADD/REM notifications when a command's access level changes at
// runtime, §4.I.
type Dribbler struct {
	cursor    int
	pending   map[int][]queuedCmd
	streamed  map[int]int // how many of Filtered() have already been sent per client
}

// NewDribbler returns an empty dribbler.
func NewDribbler() *Dribbler {
	return &Dribbler{pending: make(map[int][]queuedCmd), streamed: make(map[int]int)}
}

// BeginStreaming restarts full-list streaming for a client that just
// authed over RCON, §4.I ("optionally begin streaming the filtered
// command list").
func (d *Dribbler) BeginStreaming(clientID int) {
	d.streamed[clientID] = 0
}

// Reset drops any pending state for a client that dropped or
// de-authed.
func (d *Dribbler) Reset(clientID int) {
	delete(d.pending, clientID)
	delete(d.streamed, clientID)
}

// BroadcastAccessChange enqueues op for c to every currently mod- (or
// higher) authed client, §4.I ("enqueue an ADD or REM to every
// mod-authed client accordingly").
func (d *Dribbler) BroadcastAccessChange(pool *client.Pool, op Op, c CommandRef) {
	for i := range pool.Slots {
		if pool.Slots[i].AuthLevel >= wire.AuthMod {
			d.pending[i] = append(d.pending[i], queuedCmd{op: op, cmd: c})
		}
	}
}

// Tick advances the round-robin cursor by one client and flushes up to
// MaxRconCmdSend entries for it: pending access-change notifications
// first, then the remainder of its full filtered list, §4.L/§4.I.
func (d *Dribbler) Tick(pool *client.Pool, table CommandTable, sender Sender) {
	id := d.cursor
	d.cursor = (d.cursor + 1) % wire.MaxClients

	s := pool.Get(id)
	if s == nil || s.AuthLevel == wire.AuthNone {
		return
	}

	sent := 0
	if q := d.pending[id]; len(q) > 0 {
		for sent < MaxRconCmdSend && len(q) > 0 {
			item := q[0]
			q = q[1:]
			switch item.op {
			case OpAdd:
				sender.SendRconCmdAdd(id, item.cmd)
			case OpRem:
				sender.SendRconCmdRem(id, item.cmd.Name)
			}
			sent++
		}
		if len(q) == 0 {
			delete(d.pending, id)
		} else {
			d.pending[id] = q
		}
	}

	if sent >= MaxRconCmdSend || table == nil {
		return
	}

	filtered := table.Filtered(s.AuthLevel)
	cursor := d.streamed[id]
	for sent < MaxRconCmdSend && cursor < len(filtered) {
		sender.SendRconCmdAdd(id, filtered[cursor])
		cursor++
		sent++
	}
	d.streamed[id] = cursor
}
