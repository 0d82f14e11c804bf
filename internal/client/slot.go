// Package client implements the per-connection state machine (§3, §4.H):
// the client slot, its EMPTY→AUTH→CONNECTING→READY→INGAME transitions,
// the input ring, and name auto-rename on collision.
package client

import (
	"fmt"
	"net"

	"arenaserver/internal/mapxfer"
	"arenaserver/internal/snapshot"
	"arenaserver/internal/wire"
)

// State is a client slot's position in the connection lifecycle.
type State int

const (
	StateEmpty State = iota
	StateAuth
	StateConnecting
	StateReady
	StateIngame
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateAuth:
		return "AUTH"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateIngame:
		return "INGAME"
	default:
		return "UNKNOWN"
	}
}

// Transport is the subset of the net transport a slot needs to drive
// its own side effects (§4.F/§4.G/§4.H). The transport package
// implements this; client never imports transport, avoiding a cycle.
type Transport interface {
	SendMapChange(clientID int, m *mapxfer.Map)
	SendMapData(clientID int, chunkIndex int32, isLast bool, crc uint32, data []byte)
	SendConReady(clientID int)
	SendInputTiming(clientID int, gameTick int32)
}

// SimulationHooks is the subset of a game instance's simulation
// callbacks the state machine itself invokes. A full instance.Simulation
// satisfies this structurally.
type SimulationHooks interface {
	OnClientConnected(clientID int)
	OnClientEnter(clientID int)
	OnClientDrop(clientID int, reason string)
	IsClientReady(clientID int) bool
}

// Slot is one entry of the fixed MAX_CLIENTS array (§3).
type Slot struct {
	ID   int
	Addr net.Addr

	State State

	Name    string
	Clan    string
	Country int32
	Score   int32

	AuthLevel wire.AuthLevel
	AuthTries int

	InstanceID uint32

	Input         InputRing
	LatestInput   InputEntry
	LastInputTick int32

	LastAckedSnapshotTick int32
	SnapRate              wire.SnapRate
	LatencyMS             int32

	TrafficBytesPerSec float64 // EWMA, §9 open question
	TrafficEpochNanos  int64

	PreferredTeam int32 // -2 == unset

	Version       string
	UnknownFlags  int32

	Download mapxfer.Download

	RconCursor int // index into the filtered command iterator, §4.I

	// History is this client's bounded per-tick snapshot ring, §4.C.
	// Ownership sits here per §3: "snapshot history is owned by its
	// client slot."
	History *snapshot.History
}

// NewSlot returns a freshly reset EMPTY slot.
func NewSlot() *Slot {
	return &Slot{
		State:                 StateEmpty,
		PreferredTeam:         -2,
		SnapRate:              wire.SnapRateInit,
		LastAckedSnapshotTick: -1,
		Download:              mapxfer.NewDownload(),
		History:               snapshot.NewHistory(),
	}
}

// AcceptNoAuth handles a transport accept that was pre-authenticated by
// the connect handshake: EMPTY -> CONNECTING, §4.H row 1.
func (s *Slot) AcceptNoAuth(tr Transport, m *mapxfer.Map) bool {
	if s.State != StateEmpty {
		return false
	}
	s.State = StateConnecting
	s.Download = mapxfer.NewDownload()
	tr.SendMapChange(s.ID, m)
	return true
}

// AcceptAuth handles a transport accept that still requires NETMSG_INFO:
// EMPTY -> AUTH, §4.H row 2.
func (s *Slot) AcceptAuth() bool {
	if s.State != StateEmpty {
		return false
	}
	s.State = StateAuth
	return true
}

// HandleInfo processes NETMSG_INFO while AUTH: AUTH -> CONNECTING on a
// matching version and password, §4.H row 3. On mismatch it returns a
// drop reason and leaves the transition to the caller (Drop), matching
// §8 scenario 2's exact wording.
func (s *Slot) HandleInfo(clientVersion, password, serverVersion, serverPassword string, tr Transport, m *mapxfer.Map) (ok bool, dropReason string) {
	if s.State != StateAuth {
		return false, ""
	}
	if clientVersion != serverVersion {
		return false, fmt.Sprintf("Wrong version. Server is running '%s' and client '%s'", serverVersion, clientVersion)
	}
	if serverPassword != "" && password != serverPassword {
		return false, "Wrong password"
	}
	s.State = StateConnecting
	s.Download = mapxfer.NewDownload()
	tr.SendMapChange(s.ID, m)
	return true, ""
}

// RequestMapData processes NETMSG_REQUEST_MAP_DATA while CONNECTING,
// §4.H row 4 / §4.G. A faulty chunk index is silently dropped.
func (s *Slot) RequestMapData(chunkIndex, currentTick int32, m *mapxfer.Map, tr Transport) bool {
	if s.State != StateConnecting {
		return false
	}
	if !s.Download.RequestMapData(m, chunkIndex, currentTick) {
		return false
	}
	data, idx, isLast, ok := s.Download.ServeOne(m)
	if !ok {
		return false
	}
	tr.SendMapData(s.ID, idx, isLast, m.CRC, data)
	return true
}

// Ready processes NETMSG_READY: CONNECTING -> READY, §4.H row 5.
func (s *Slot) Ready(tr Transport, hooks SimulationHooks) bool {
	if s.State != StateConnecting {
		return false
	}
	s.State = StateReady
	hooks.OnClientConnected(s.ID)
	tr.SendConReady(s.ID)
	return true
}

// EnterGame processes NETMSG_ENTERGAME: READY -> INGAME, guarded by
// simulation readiness, §4.H row 6.
func (s *Slot) EnterGame(hooks SimulationHooks) bool {
	if s.State != StateReady || !hooks.IsClientReady(s.ID) {
		return false
	}
	s.State = StateIngame
	hooks.OnClientEnter(s.ID)
	return true
}

// HandleInput buffers a NETMSG_INPUT while INGAME and replies with
// NETMSG_INPUTTIMING, §4.H row 7.
func (s *Slot) HandleInput(gameTick int32, data []int32, tr Transport) bool {
	if s.State != StateIngame || len(data) > wire.MaxInputSize {
		return false
	}
	entry := s.Input.Add(gameTick, data)
	s.LatestInput = entry
	s.LastInputTick = gameTick
	tr.SendInputTiming(s.ID, gameTick)
	return true
}

// Drop transitions the slot to EMPTY from any state, invoking
// OnClientDrop only if the client had reached READY or beyond, §4.H
// last row. The slot's identity (ID) survives; everything else resets.
func (s *Slot) Drop(reason string, hooks SimulationHooks) {
	if s.State >= StateReady && hooks != nil {
		hooks.OnClientDrop(s.ID, reason)
	}
	id := s.ID
	*s = *NewSlot()
	s.ID = id
}

// ResetForReload re-parents a connected client onto a freshly (re)loaded
// map: any state past AUTH goes back to CONNECTING with a fresh download
// cursor, preserving PreferredTeam, per §4.K/§4.L.
func (s *Slot) ResetForReload(m *mapxfer.Map, tr Transport) bool {
	if s.State <= StateAuth {
		return false
	}
	s.State = StateConnecting
	s.Download = mapxfer.NewDownload()
	tr.SendMapChange(s.ID, m)
	return true
}
