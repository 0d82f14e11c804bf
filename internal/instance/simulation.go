// Package instance implements the multi-instance router (§4.K): the
// id -> game-instance table, StartGameServer/StopGameServer/
// MovePlayerToGameServer, and the Simulation boundary each instance's
// gameplay code must satisfy. The gameplay itself is out of scope
// (§1) — only NoopSimulation is provided, as a reference stub.
package instance

import (
	"arenaserver/internal/packer"
	"arenaserver/internal/snapshot"
)

// Simulation is the exact callback set named in §1 for the out-of-core
// gameplay collaborator. A game instance owns exactly one of these.
type Simulation interface {
	OnInit() error
	OnShutdown()

	OnTick()
	OnSnap(clientID int) *snapshot.Snapshot
	OnMessage(clientID int, msgID int, unpacker *packer.Unpacker)

	OnClientConnected(clientID int)
	OnClientEnter(clientID int)
	OnClientDrop(clientID int, reason string)
	OnClientDirectInput(clientID int, gameTick int32, input []int32)
	OnClientPredictedInput(clientID int, gameTick int32, input []int32)

	IsClientReady(clientID int) bool
	IsClientPlayer(clientID int) bool

	NetVersion() string
	GameType() string
	Version() string
}

// NoopSimulation is a reference Simulation that does nothing: every
// client is immediately considered ready, no snapshot items are ever
// produced. It exists so the router and tick loop are independently
// testable and runnable without a real gameplay collaborator wired in.
type NoopSimulation struct {
	Net  string
	Game string
	Ver  string
}

// NewNoopSimulation returns a NoopSimulation reporting the given
// protocol identity strings.
func NewNoopSimulation(netVersion, gameType, version string) *NoopSimulation {
	return &NoopSimulation{Net: netVersion, Game: gameType, Ver: version}
}

func (n *NoopSimulation) OnInit() error { return nil }
func (n *NoopSimulation) OnShutdown()   {}

func (n *NoopSimulation) OnTick() {}
func (n *NoopSimulation) OnSnap(clientID int) *snapshot.Snapshot {
	return snapshot.Empty()
}
func (n *NoopSimulation) OnMessage(clientID int, msgID int, unpacker *packer.Unpacker) {}

func (n *NoopSimulation) OnClientConnected(clientID int)                              {}
func (n *NoopSimulation) OnClientEnter(clientID int)                                  {}
func (n *NoopSimulation) OnClientDrop(clientID int, reason string)                    {}
func (n *NoopSimulation) OnClientDirectInput(clientID int, gameTick int32, input []int32)    {}
func (n *NoopSimulation) OnClientPredictedInput(clientID int, gameTick int32, input []int32) {}

func (n *NoopSimulation) IsClientReady(clientID int) bool { return true }
func (n *NoopSimulation) IsClientPlayer(clientID int) bool { return false }

func (n *NoopSimulation) NetVersion() string { return n.Net }
func (n *NoopSimulation) GameType() string   { return n.Game }
func (n *NoopSimulation) Version() string    { return n.Ver }
