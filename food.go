package main

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"

	"agar-server/physics"
)

// FoodSpawner keeps the food population at its target
type FoodSpawner struct {
	target    int
	maxRadius float64
	maxSpeed  float64
	width     float64
	height    float64
	names     *NamePool
	rng       *rand.Rand
}

// NewFoodSpawner creates a spawner. names may be nil, in which case food is anonymous.
func NewFoodSpawner(world WorldConfig, food FoodConfig, names *NamePool, rng *rand.Rand) *FoodSpawner {
	return &FoodSpawner{
		target:    food.Target,
		maxRadius: food.MaxRadius,
		maxSpeed:  food.MaxSpeed,
		width:     world.Width,
		height:    world.Height,
		names:     names,
		rng:       rng,
	}
}

// Deficit returns how many food entities are missing
func (s *FoodSpawner) Deficit(live int) int {
	return max(0, s.target-live)
}

// Spawn tops up food in w. The caller holds the world lock. Returns the number spawned.
func (s *FoodSpawner) Spawn(w *World) int {
	n := s.Deficit(w.registry.Count((*Entity).IsFood))
	for range n {
		w.addEntity(s.newFood(w.allocID()))
	}
	return n
}

func (s *FoodSpawner) newFood(id uint64) *Entity {
	value := s.rng.Float64() * s.maxRadius
	pos := r2.Vec{X: s.rng.Float64() * s.width, Y: s.rng.Float64() * s.height}
	vel := r2.Vec{X: s.symmetric(), Y: s.symmetric()}
	e := &Entity{
		ID:        id,
		Kind:      KindFood,
		Body:      physics.NewBody(id, pos, vel, value),
		FoodValue: value,
	}
	if s.names != nil {
		ident := s.names.Next()
		e.Name = ident.Name
		e.Avatar = ident.Avatar
	}
	return e
}

// symmetric returns a value uniformly in [-maxSpeed, maxSpeed)
func (s *FoodSpawner) symmetric() float64 {
	return (s.rng.Float64()*2 - 1) * s.maxSpeed
}
