package instance

import (
	"errors"
	"sort"

	"arenaserver/internal/client"
	"arenaserver/internal/mapxfer"
)

var (
	ErrCannotStopDefault = errors.New("instance: cannot stop the default instance")
	ErrUnknownInstance   = errors.New("instance: unknown instance id")
	ErrUnknownClient     = errors.New("instance: unknown client id")
)

// MapLoader resolves a map name to its loaded bytes/CRC. The map file
// format and CRC computation are out of core (§1); the router only
// needs the result.
type MapLoader interface {
	LoadMap(name string) (*mapxfer.Map, error)
}

// Factory instantiates a Simulation for a newly started instance.
type Factory func(mapName string, config any) (Simulation, error)

// Instance is one running game: a loaded map plus its simulation, §3.
type Instance struct {
	ID      uint32
	MapName string
	Map     *mapxfer.Map
	Sim     Simulation
}

// Router is the id -> instance table, id 0 always present, §4.K.
type Router struct {
	instances map[uint32]*Instance
	loader    MapLoader
	factory   Factory
}

// NewRouter returns a router with no instances loaded yet; call
// InitDefault to bring up instance 0.
func NewRouter(loader MapLoader, factory Factory) *Router {
	return &Router{instances: make(map[uint32]*Instance), loader: loader, factory: factory}
}

// InitDefault loads instance 0, the one that always exists.
func (r *Router) InitDefault(mapName string, config any) error {
	return r.start(0, mapName, config)
}

func (r *Router) start(id uint32, mapName string, config any) error {
	m, err := r.loader.LoadMap(mapName)
	if err != nil {
		return err
	}
	sim, err := r.factory(mapName, config)
	if err != nil {
		return err
	}
	if err := sim.OnInit(); err != nil {
		return err
	}
	r.instances[id] = &Instance{ID: id, MapName: mapName, Map: m, Sim: sim}
	return nil
}

// StartGameServer loads mapName under the smallest unused positive id,
// instantiates its simulation, and calls OnInit, §4.K.
func (r *Router) StartGameServer(mapName string, config any) (uint32, error) {
	id := r.smallestUnusedPositiveID()
	if err := r.start(id, mapName, config); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Router) smallestUnusedPositiveID() uint32 {
	for id := uint32(1); ; id++ {
		if _, ok := r.instances[id]; !ok {
			return id
		}
	}
}

// ReloadInstance reloads id's map in place: load the new map, shut
// down the old simulation, instantiate and OnInit the new one, then
// reset every non-empty client slot of instance id (ResetForReload),
// preserving PreferredTeam, §4.L step 1.
func (r *Router) ReloadInstance(id uint32, mapName string, config any, pool *client.Pool, tr client.Transport) error {
	inst, ok := r.instances[id]
	if !ok {
		return ErrUnknownInstance
	}

	m, err := r.loader.LoadMap(mapName)
	if err != nil {
		return err
	}
	sim, err := r.factory(mapName, config)
	if err != nil {
		return err
	}
	if inst.Sim != nil {
		inst.Sim.OnShutdown()
	}
	if err := sim.OnInit(); err != nil {
		return err
	}

	inst.Map = m
	inst.MapName = mapName
	inst.Sim = sim

	for i := range pool.Slots {
		s := &pool.Slots[i]
		if s.State == client.StateEmpty || s.InstanceID != id {
			continue
		}
		s.ResetForReload(m, tr)
	}
	return nil
}

// StopGameServer re-parents every client owned by id onto moveTo
// (fresh map-change, state reset to CONNECTING), then disposes the
// instance and its map, §4.K. Per §9's open question about the
// original's map-list removal bug, an id with no matching instance is
// a no-op rather than an error.
func (r *Router) StopGameServer(id, moveTo uint32, pool *client.Pool, tr client.Transport) error {
	if id == 0 {
		return ErrCannotStopDefault
	}
	inst, ok := r.instances[id]
	if !ok {
		return nil
	}
	target, ok := r.instances[moveTo]
	if !ok {
		return ErrUnknownInstance
	}

	for i := range pool.Slots {
		s := &pool.Slots[i]
		if s.State == client.StateEmpty || s.InstanceID != id {
			continue
		}
		if inst.Sim != nil && s.State >= client.StateReady {
			inst.Sim.OnClientDrop(s.ID, "instance stopped")
		}
		s.InstanceID = moveTo
		s.ResetForReload(target.Map, tr)
	}

	if inst.Sim != nil {
		inst.Sim.OnShutdown()
	}
	delete(r.instances, id)
	return nil
}

// MovePlayerToGameServer performs the same client transition as
// StopGameServer for a single client, §4.K / §8 scenario 5.
func (r *Router) MovePlayerToGameServer(pool *client.Pool, tr client.Transport, clientID int, id uint32) error {
	s := pool.Get(clientID)
	if s == nil {
		return ErrUnknownClient
	}
	target, ok := r.instances[id]
	if !ok {
		return ErrUnknownInstance
	}

	if old, ok := r.instances[s.InstanceID]; ok && old.Sim != nil && s.State >= client.StateReady {
		old.Sim.OnClientDrop(s.ID, "moved to another game server")
	}
	s.InstanceID = id
	s.ResetForReload(target.Map, tr)
	return nil
}

// Get returns the instance for id.
func (r *Router) Get(id uint32) (*Instance, bool) {
	inst, ok := r.instances[id]
	return inst, ok
}

// All returns every instance ordered by id.
func (r *Router) All() []*Instance {
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
