package main

import "agar-server/physics"

// Kind distinguishes players from food
type Kind uint8

const (
	KindPlayer Kind = iota
	KindFood
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindFood:
		return "food"
	}
	return "unknown"
}

// Entity is a circular body in the world. Position, velocity and radius live
// on Body, which is owned by the physics engine.
type Entity struct {
	ID        uint64
	Kind      Kind
	Body      *physics.Body
	Owner     string  // connection id, players only
	FoodValue float64 // initial radius, food only
	Name      string
	Avatar    string
}

// Radius returns the current radius
func (e *Entity) Radius() float64 {
	return e.Body.Radius
}

// IsFood reports whether the entity counts toward the food population
func (e *Entity) IsFood() bool {
	return e.Kind == KindFood
}

// ToState converts to protocol state
func (e *Entity) ToState() EntityState {
	b := e.Body
	return EntityState{
		ID:              e.ID,
		Kind:            e.Kind.String(),
		Radius:          round3(b.Radius),
		Name:            e.Name,
		AvatarRef:       e.Avatar,
		Position:        Point{X: round1(b.Pos.X), Y: round1(b.Pos.Y)},
		Velocity:        Point{X: round3(b.Vel.X), Y: round3(b.Vel.Y)},
		AngularPosition: b.Angle,
	}
}

// Registry is the authoritative set of live entities, iterated in insertion order.
// It is not safe for concurrent use; the World lock guards it.
type Registry struct {
	byID  map[uint64]*Entity
	order []*Entity
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Entity)}
}

// Add registers an entity
func (r *Registry) Add(e *Entity) {
	if _, ok := r.byID[e.ID]; ok {
		return
	}
	r.byID[e.ID] = e
	r.order = append(r.order, e)
}

// Remove deletes an entity. Unknown ids are a no-op and return false.
func (r *Registry) Remove(id uint64) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, e := range r.order {
		if e.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the live entity with the given id, or nil
func (r *Registry) Get(id uint64) *Entity {
	return r.byID[id]
}

// ForEach calls visit for every live entity
func (r *Registry) ForEach(visit func(*Entity)) {
	for _, e := range r.order {
		visit(e)
	}
}

// Count returns the number of entities matching pred
func (r *Registry) Count(pred func(*Entity) bool) int {
	n := 0
	for _, e := range r.order {
		if pred(e) {
			n++
		}
	}
	return n
}

// Len returns the number of live entities
func (r *Registry) Len() int {
	return len(r.order)
}
