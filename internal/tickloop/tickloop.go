// Package tickloop is the fixed-rate simulation clock (§4.L): map
// reload detection, input application, per-instance OnTick, snapshot
// scheduling, rcon command dribble, masterserver registration, and the
// network pump. It is the one goroutine that owns client slots, the
// instance table and the snapshot id pool, per §5's single-threaded
// contract — every other package it wires together is built to be
// called exclusively from here.
package tickloop

import (
	"hash/crc32"
	"log"
	"time"

	"arenaserver/internal/ban"
	"arenaserver/internal/client"
	"arenaserver/internal/config"
	"arenaserver/internal/dbworker"
	"arenaserver/internal/instance"
	"arenaserver/internal/metrics"
	"arenaserver/internal/rcon"
	"arenaserver/internal/snapshot"
	"arenaserver/internal/specwatch"
	"arenaserver/internal/transport"
	"arenaserver/internal/wire"

	"github.com/google/uuid"
)

// snapRateDivisor maps a snap-rate gate to "snapshot this client only
// on ticks divisible by N", §4.L: RECOVER every 50th tick, INIT every
// 10th tick, FULL on every tick DoSnapshot runs.
func snapRateDivisor(rate wire.SnapRate) int32 {
	switch rate {
	case wire.SnapRateRecover:
		return wire.TicksPerSecond
	case wire.SnapRateInit:
		return wire.TicksPerSecond / 5
	default:
		return 1
	}
}

// Masterserver is the external heartbeat/registration collaborator
// (§1, out of scope beyond this boundary).
type Masterserver interface {
	Register(name string, port int, players, maxPlayers int)
}

// NoopMasterserver satisfies Masterserver without registering
// anywhere, the default when no real registry is configured.
type NoopMasterserver struct{}

func (NoopMasterserver) Register(name string, port int, players, maxPlayers int) {}

// Loop is the tick-rate orchestrator. Every field it holds is either
// owned exclusively by this goroutine or safe to share (the DB worker,
// which owns its own goroutine and channel).
type Loop struct {
	Pool      *client.Pool
	Router    *instance.Router
	Transport *transport.Engine
	Bans      *ban.Engine
	Rcon      *rcon.Engine
	Table     rcon.CommandTable
	Dribbler  *rcon.Dribbler
	IDPool    *snapshot.IDPool
	DB        *dbworker.Worker   // nil disables rating persistence
	Spectate  *specwatch.Hub     // nil disables the spectator feed
	Master    Masterserver

	SizeTable snapshot.SizeTable
	Cfg       config.AppConfig

	// DesiredMapName is checked against the default instance's loaded
	// map every tick; changing it (e.g. via an "sv_map" RCON command)
	// triggers a reload, §4.L step 1.
	DesiredMapName string

	// InstanceID identifies this server process; a fresh one is
	// generated at every start. It is reported on the admin /state
	// route, so ops tooling can tell two processes advertising the same
	// SvName apart.
	InstanceID uuid.UUID

	currentTick int32
	now         func() time.Time
}

// New wires a tick loop from its already-constructed collaborators.
func New(pool *client.Pool, router *instance.Router, tr *transport.Engine, bans *ban.Engine, rconEngine *rcon.Engine, table rcon.CommandTable, dribbler *rcon.Dribbler, idPool *snapshot.IDPool, cfg config.AppConfig) *Loop {
	return &Loop{
		Pool:           pool,
		Router:         router,
		Transport:      tr,
		Bans:           bans,
		Rcon:           rconEngine,
		Table:          table,
		Dribbler:       dribbler,
		IDPool:         idPool,
		Master:         NoopMasterserver{},
		SizeTable:      snapshot.SizeTable{},
		Cfg:            cfg,
		DesiredMapName: cfg.Game.SvMap,
		InstanceID:     uuid.New(),
		now:            time.Now,
	}
}

// SetClock overrides the wall clock, for tests that need deterministic
// timestamps on history entries and metrics.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// Run drives the tick loop until stop is closed. It never returns an
// error mid-run: per §7's propagation policy, every failure becomes
// either a per-client Drop, a log line, or (at startup, before Run is
// called) a fatal error.
func (l *Loop) Run(stop <-chan struct{}) {
	tickDuration := time.Second / wire.TicksPerSecond
	ticker := time.NewTicker(tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			l.shutdown()
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs exactly one tick of the 7-step sequence, §4.L. Exported so
// tests can drive the loop deterministically without a real ticker.
func (l *Loop) Tick() {
	start := l.now()
	defer func() {
		metrics.TickDuration.Observe(l.now().Sub(start).Seconds())
	}()

	l.checkMapReload()

	l.currentTick++
	l.Transport.SetCurrentTick(l.currentTick)
	l.Bans.Update(l.now())

	for _, inst := range l.Router.All() {
		l.applyBufferedInput(inst)
		inst.Sim.OnTick()
	}

	if l.Cfg.MapTransfer.SvHighBandwidth || l.currentTick%2 == 0 {
		l.doSnapshot()
		l.publishSpectatorTick()
	}

	if l.Dribbler != nil {
		l.Dribbler.Tick(l.Pool, l.Table, l.Transport)
	}

	l.registerMasterserver()

	l.Transport.PumpNetwork(5 * time.Millisecond)

	metrics.ClientsConnected.Set(float64(l.connectedCount()))
}

// checkMapReload implements §4.L step 1: if the desired map name
// differs from the default instance's loaded map, reload it and reset
// every connected client of that instance to CONNECTING.
func (l *Loop) checkMapReload() {
	inst, ok := l.Router.Get(0)
	if !ok {
		return
	}
	if inst.MapName == l.DesiredMapName {
		return
	}
	log.Printf("🗺️ reloading default instance map: %q -> %q", inst.MapName, l.DesiredMapName)
	if err := l.Router.ReloadInstance(0, l.DesiredMapName, nil, l.Pool, l.Transport); err != nil {
		log.Printf("⚠️ map reload failed, reverting sv_map: %v", err)
		l.DesiredMapName = inst.MapName
		return
	}
	l.IDPool.TimeoutIDs()
}

// applyBufferedInput feeds each INGAME client's buffered input for the
// current tick to its instance, §4.L step 2 ("feeding each tick's
// buffered input to the simulation for clients in INGAME").
func (l *Loop) applyBufferedInput(inst *instance.Instance) {
	for i := range l.Pool.Slots {
		s := &l.Pool.Slots[i]
		if s.State != client.StateIngame || s.InstanceID != inst.ID {
			continue
		}
		entry, ok := s.Input.Get(l.currentTick)
		if !ok {
			continue
		}
		inst.Sim.OnClientDirectInput(s.ID, l.currentTick, entry.Data[:entry.Size])
	}
}

// doSnapshot builds and sends a delta snapshot for every INGAME client,
// §4.L step 3 / §4.D. Rate gates (see snapRateDivisor): RECOVER every
// 50th tick, INIT every 10th tick, FULL every invocation.
func (l *Loop) doSnapshot() {
	for i := range l.Pool.Slots {
		s := &l.Pool.Slots[i]
		if s.State != client.StateIngame {
			continue
		}
		if divisor := snapRateDivisor(s.SnapRate); l.currentTick%divisor != 0 {
			continue
		}
		l.snapshotOne(s)
	}
}

func (l *Loop) snapshotOne(s *client.Slot) {
	start := l.now()
	defer func() {
		metrics.SnapshotBuildDuration.Observe(l.now().Sub(start).Seconds())
	}()

	inst, ok := l.Router.Get(s.InstanceID)
	if !ok {
		return
	}
	to := inst.Sim.OnSnap(s.ID)

	from := snapshot.Empty()
	fromTick := s.LastAckedSnapshotTick
	if fromTick >= 0 {
		if entry, ok := s.History.Get(fromTick); ok {
			if reconstructed, err := snapshot.ApplyDelta(snapshot.Empty(), entry.Bytes, l.SizeTable); err == nil {
				from = reconstructed
			} else {
				fromTick = -1
			}
		} else {
			// The client acked a tick we no longer have: fall back to a
			// full snapshot and downgrade so it rebuilds its baseline
			// before going back to FULL, §4.L step 3.
			fromTick = -1
			if s.SnapRate == wire.SnapRateFull {
				s.SnapRate = wire.SnapRateRecover
			}
		}
	}

	deltaBytes := snapshot.CreateDelta(from, to, l.SizeTable)
	deltaTickDistance := l.currentTick - fromTick

	fullBytes := snapshot.CreateDelta(snapshot.Empty(), to, l.SizeTable)
	s.History.Add(l.currentTick, l.now().UnixNano(), fullBytes)
	s.History.PurgeUntil(l.currentTick - snapshot.EvictionWindow)

	if s.SnapRate == wire.SnapRateInit {
		s.SnapRate = wire.SnapRateFull
	}

	l.sendDelta(s.ID, deltaTickDistance, deltaBytes)
}

func (l *Loop) sendDelta(clientID int, deltaTickDistance int32, deltaBytes []byte) {
	if len(deltaBytes) == 0 {
		l.Transport.SendSnapEmpty(clientID, l.currentTick, deltaTickDistance)
		return
	}

	crc := crc32.ChecksumIEEE(deltaBytes)
	if len(deltaBytes) <= wire.MaxSnapshotPacksize {
		l.Transport.SendSnapSingle(clientID, l.currentTick, deltaTickDistance, crc, deltaBytes)
		return
	}

	numPackets := int32((len(deltaBytes) + wire.MaxSnapshotPacksize - 1) / wire.MaxSnapshotPacksize)
	for idx := int32(0); idx < numPackets; idx++ {
		start := int(idx) * wire.MaxSnapshotPacksize
		end := start + wire.MaxSnapshotPacksize
		if end > len(deltaBytes) {
			end = len(deltaBytes)
		}
		l.Transport.SendSnap(clientID, l.currentTick, deltaTickDistance, numPackets, idx, crc, deltaBytes[start:end])
	}
}

func (l *Loop) registerMasterserver() {
	if l.Master == nil {
		return
	}
	if l.currentTick%(wire.TicksPerSecond*15) != 0 {
		return
	}
	l.Master.Register(l.Cfg.Network.SvName, l.Cfg.Network.SvPort, l.connectedCount(), l.Cfg.Game.SvMaxClients)
}

// CurrentTick returns the last tick number advanced by Tick.
func (l *Loop) CurrentTick() int32 { return l.currentTick }

// State reports a point-in-time summary for the admin HTTP /state
// route, satisfying adminhttp.StateProvider structurally.
func (l *Loop) State() any {
	return map[string]any{
		"instanceId": l.InstanceID.String(),
		"tick":       l.currentTick,
		"clients":    l.connectedCount(),
		"instances":  len(l.Router.All()),
	}
}

func (l *Loop) connectedCount() int {
	n := 0
	for i := range l.Pool.Slots {
		if l.Pool.Slots[i].State != client.StateEmpty {
			n++
		}
	}
	return n
}

// publishSpectatorTick pushes one summary frame to the optional
// spectator feed, §6. Called after doSnapshot so the frame reflects
// this tick's state.
func (l *Loop) publishSpectatorTick() {
	if l.Spectate == nil {
		return
	}
	l.Spectate.Publish(specwatch.TickSummary{
		Tick:        l.currentTick,
		Players:     l.connectedCount(),
		Instances:   len(l.Router.All()),
		BytesPerSec: 0,
	})
}

// shutdown drops every connected client with a visible reason before
// tearing down each instance's simulation, §5's resource-lifecycle
// rule ("every connected client being dropped with reason 'Server
// shutdown' before simulation teardown").
func (l *Loop) shutdown() {
	for i := range l.Pool.Slots {
		s := &l.Pool.Slots[i]
		if s.State == client.StateEmpty {
			continue
		}
		l.Transport.Drop(s.ID, "Server shutdown")
	}
	for _, inst := range l.Router.All() {
		inst.Sim.OnShutdown()
	}
	if l.DB != nil {
		if err := l.DB.Close(); err != nil {
			log.Printf("⚠️ db worker close failed: %v", err)
		}
	}
}
