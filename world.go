package main

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"agar-server/physics"
)

// World owns the entity registry and the physics engine. Every mutation and
// every snapshot goes through mu, so a step is never observed half done.
type World struct {
	mu       sync.Mutex
	cfg      Config
	registry *Registry
	engine   *physics.Engine
	spawner  *FoodSpawner
	resolver *Resolver
	tick     uint64
	nextID   uint64
}

// StepResult is what one simulation step produced
type StepResult struct {
	Tick        uint64
	Absorptions []Absorption
	Spawned     int
}

// Snapshot is a consistent copy of every live entity
type Snapshot struct {
	Tick     uint64
	Entities []EntityState
}

// NewWorld creates a world and fills it with food
func NewWorld(cfg Config, names *NamePool, rng *rand.Rand) *World {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	w := &World{
		cfg:      cfg,
		registry: NewRegistry(),
		engine: physics.NewEngine(physics.Config{
			Width:           cfg.World.Width,
			Height:          cfg.World.Height,
			CellSize:        cfg.Physics.CellSize,
			EdgeRestitution: cfg.Physics.EdgeRestitution,
			EdgeFriction:    cfg.Physics.EdgeFriction,
			BodyRestitution: cfg.Physics.BodyRestitution,
		}),
		spawner:  NewFoodSpawner(cfg.World, cfg.Food, names, rng),
		resolver: NewResolver(cfg.Physics.MinimumMergeDifference),
	}
	w.spawner.Spawn(w)
	return w
}

// Step advances the engine by dt milliseconds, resolves merges and tops up
// food as one unit of work
func (w *World) Step(dt float64) StepResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	pairs := w.engine.Step(dt)
	absorbed := w.resolver.Resolve(w, pairs)
	spawned := w.spawner.Spawn(w)
	w.tick++
	return StepResult{Tick: w.tick, Absorptions: absorbed, Spawned: spawned}
}

// Snapshot copies the state of every live entity
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Tick:     w.tick,
		Entities: make([]EntityState, 0, w.registry.Len()),
	}
	w.registry.ForEach(func(e *Entity) {
		snap.Entities = append(snap.Entities, e.ToState())
	})
	return snap
}

// SpawnPlayer creates a player entity and its attractor at the spawn point
func (w *World) SpawnPlayer(owner string, ident Identity) (*Entity, *physics.Attractor) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pc := w.cfg.Player
	id := w.allocID()
	spawn := r2.Vec{X: pc.SpawnX, Y: pc.SpawnY}
	e := &Entity{
		ID:     id,
		Kind:   KindPlayer,
		Body:   physics.NewBody(id, spawn, r2.Vec{}, pc.StartRadius),
		Owner:  owner,
		Name:   ident.Name,
		Avatar: ident.Avatar,
	}
	attractor := physics.NewAttractor(id, spawn, pc.AttractorStrength, pc.AttractorMin, pc.AttractorOrder)
	w.addEntity(e)
	w.engine.AddBehavior(attractor)
	return e, attractor
}

// SetTarget moves an attractor's target point
func (w *World) SetTarget(a *physics.Attractor, p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a.Target = r2.Vec{X: p.X, Y: p.Y}
}

// RemovePlayer removes a player entity and its attractor. Safe to repeat;
// returns false if the entity was already gone.
func (w *World) RemovePlayer(id uint64, a *physics.Attractor) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a != nil {
		w.engine.RemoveBehavior(a)
	}
	return w.removeEntity(id)
}

// Alive reports whether the entity is still in the world
func (w *World) Alive(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.Get(id) != nil
}

// Status returns counters for the status endpoint
func (w *World) Status() StatusMsg {
	w.mu.Lock()
	defer w.mu.Unlock()
	food := w.registry.Count((*Entity).IsFood)
	return StatusMsg{
		Tick:     w.tick,
		Entities: w.registry.Len(),
		Players:  w.registry.Len() - food,
		Food:     food,
	}
}

// Bounds returns the world width and height
func (w *World) Bounds() (float64, float64) {
	return w.cfg.World.Width, w.cfg.World.Height
}

// allocID hands out monotonically increasing ids. Caller holds mu.
func (w *World) allocID() uint64 {
	w.nextID++
	return w.nextID
}

// addEntity registers e with both the registry and the engine. Caller holds mu.
func (w *World) addEntity(e *Entity) {
	w.registry.Add(e)
	w.engine.Add(e.Body)
}

// removeEntity removes from both the registry and the engine. Caller holds mu.
func (w *World) removeEntity(id uint64) bool {
	removed := w.registry.Remove(id)
	w.engine.Remove(id)
	return removed
}
