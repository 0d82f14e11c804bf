package tickloop

import (
	"net"
	"testing"
	"time"

	"arenaserver/internal/ban"
	"arenaserver/internal/client"
	"arenaserver/internal/config"
	"arenaserver/internal/instance"
	"arenaserver/internal/mapxfer"
	"arenaserver/internal/rcon"
	"arenaserver/internal/snapshot"
	"arenaserver/internal/transport"
	"arenaserver/internal/wire"
)

type fakeLoader struct{}

func (fakeLoader) LoadMap(name string) (*mapxfer.Map, error) {
	return &mapxfer.Map{Name: name, CRC: 1, Size: 10, Bytes: make([]byte, 10)}, nil
}

// growingSimulation reports a snapshot whose item count grows by one
// every tick, so successive DoSnapshot passes exercise real (non-empty)
// deltas instead of the noop's always-empty snapshot.
type growingSimulation struct {
	instance.NoopSimulation
	items int
}

func (g *growingSimulation) OnSnap(clientID int) *snapshot.Snapshot {
	s := snapshot.Empty()
	for i := 0; i < g.items; i++ {
		s.Add(snapshot.Key{Type: 1, ID: uint16(i)}, []int32{int32(i), int32(clientID)})
	}
	return s
}

func (g *growingSimulation) OnTick() { g.items++ }

func fakeFactory(mapName string, config any) (instance.Simulation, error) {
	return &growingSimulation{NoopSimulation: *instance.NewNoopSimulation("0.6", "dm", "1.0")}, nil
}

type fakeCommandTable struct{}

func (fakeCommandTable) Execute(line string, accessLevel wire.AuthLevel) string { return "" }
func (fakeCommandTable) Filtered(accessLevel wire.AuthLevel) []rcon.CommandRef  { return nil }

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	pool := client.NewPool()
	router := instance.NewRouter(fakeLoader{}, fakeFactory)
	if err := router.InitDefault("dm1", nil); err != nil {
		t.Fatal(err)
	}

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	bans := ban.New()
	rconEngine := rcon.New("admin-pw", "mod-pw", 5, 5)
	dribbler := rcon.NewDribbler()
	tr := transport.NewEngine(conn, pool, bans, router, rconEngine, fakeCommandTable{}, dribbler, nil)

	cfg := config.AppConfig{
		Network: config.NetworkConfig{SvName: "test", SvPort: 8303},
		Game:    config.GameConfig{SvMap: "dm1", SvMaxClients: 64},
	}

	l := New(pool, router, tr, bans, rconEngine, fakeCommandTable{}, dribbler, snapshot.NewIDPool(64), cfg)
	return l
}

func TestTickAdvancesCurrentTick(t *testing.T) {
	l := newTestLoop(t)
	l.Tick()
	if l.CurrentTick() != 1 {
		t.Errorf("CurrentTick() = %d, want 1", l.CurrentTick())
	}
	l.Tick()
	if l.CurrentTick() != 2 {
		t.Errorf("CurrentTick() = %d, want 2", l.CurrentTick())
	}
}

func TestStateReportsInstanceIDAndTick(t *testing.T) {
	l := newTestLoop(t)
	l.Tick()

	state, ok := l.State().(map[string]any)
	if !ok {
		t.Fatalf("State() = %T, want map[string]any", l.State())
	}
	if state["instanceId"] != l.InstanceID.String() {
		t.Errorf("instanceId = %v, want %s", state["instanceId"], l.InstanceID.String())
	}
	if state["tick"] != int32(1) {
		t.Errorf("tick = %v, want 1", state["tick"])
	}
}

func TestTickSendsDeltaSnapshotsToIngameClients(t *testing.T) {
	l := newTestLoop(t)
	s := l.Pool.Get(3)
	s.State = client.StateIngame
	s.InstanceID = 0

	for i := 0; i < 10; i++ {
		l.Tick()
	}

	entry, ok := s.History.Get(l.CurrentTick())
	if !ok {
		t.Fatalf("History.Get(%d) missing an entry after ticking", l.CurrentTick())
	}
	if len(entry.Bytes) == 0 && l.CurrentTick() > 1 {
		t.Errorf("expected a non-empty delta once the simulation has accumulated items")
	}
}

func TestSnapRatePromotesFromInitToFull(t *testing.T) {
	l := newTestLoop(t)
	s := l.Pool.Get(3)
	s.State = client.StateIngame
	if s.SnapRate != wire.SnapRateInit {
		t.Fatalf("expected a fresh slot to start at SnapRateInit")
	}

	for i := 0; i < 10; i++ {
		l.Tick()
	}

	if s.SnapRate != wire.SnapRateFull {
		t.Errorf("SnapRate = %v, want SnapRateFull after its first snapshot", s.SnapRate)
	}
}

func TestMapReloadResetsIngameClientsToConnecting(t *testing.T) {
	l := newTestLoop(t)
	s := l.Pool.Get(3)
	s.State = client.StateIngame
	s.PreferredTeam = 1

	l.DesiredMapName = "dm2"
	l.Tick()

	inst, _ := l.Router.Get(0)
	if inst.MapName != "dm2" {
		t.Errorf("MapName = %q, want dm2", inst.MapName)
	}
	if s.State != client.StateConnecting {
		t.Errorf("state = %v, want CONNECTING", s.State)
	}
	if s.PreferredTeam != 1 {
		t.Errorf("PreferredTeam = %d, want preserved 1", s.PreferredTeam)
	}
}

func TestShutdownDropsConnectedClientsAndStopsSimulations(t *testing.T) {
	l := newTestLoop(t)
	s := l.Pool.Get(3)
	s.State = client.StateReady

	stop := make(chan struct{})
	close(stop)
	done := make(chan struct{})
	go func() {
		l.Run(stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}

	if s.State != client.StateEmpty {
		t.Errorf("state = %v, want EMPTY after shutdown", s.State)
	}
}
