package physics

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// Config holds world bounds and contact response parameters
type Config struct {
	Width           float64
	Height          float64
	CellSize        float64
	EdgeRestitution float64 // velocity kept along the wall normal after a bounce
	EdgeFriction    float64 // Coulomb coefficient applied to tangential velocity at walls
	BodyRestitution float64 // restitution for body-body impulses
}

// Pair names two overlapping bodies found during one step. A.ID < B.ID always.
// RadiusA and RadiusB are the radii at detection time and are informational;
// a caller that changes radii while handling earlier pairs should read the
// live bodies instead.
type Pair struct {
	A, B             uint64
	RadiusA, RadiusB float64
}

// Engine integrates bodies, contains them in the world box and reports
// overlapping pairs. It is not safe for concurrent use.
type Engine struct {
	cfg       Config
	bodies    map[uint64]*Body
	behaviors []Behavior
	grid      *Grid

	order []*Body
	query []uint64
	seen  map[uint64]struct{}
}

// NewEngine creates an empty engine
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		bodies: make(map[uint64]*Body),
		grid:   NewGrid(cfg.Width, cfg.Height, cfg.CellSize),
		seen:   make(map[uint64]struct{}),
	}
}

// Add registers a body. A body with an id already present replaces it.
func (e *Engine) Add(b *Body) {
	e.bodies[b.ID] = b
}

// Remove deletes a body and every behavior bound to it. Unknown ids are a no-op.
func (e *Engine) Remove(id uint64) bool {
	if _, ok := e.bodies[id]; !ok {
		return false
	}
	delete(e.bodies, id)
	e.behaviors = slices.DeleteFunc(e.behaviors, func(bh Behavior) bool {
		return bh.BodyID() == id
	})
	return true
}

// Body returns the body with the given id, or nil
func (e *Engine) Body(id uint64) *Body {
	return e.bodies[id]
}

// Len returns the number of live bodies
func (e *Engine) Len() int {
	return len(e.bodies)
}

// Bodies returns live bodies ordered by id
func (e *Engine) Bodies() []*Body {
	out := make([]*Body, 0, len(e.bodies))
	for _, b := range e.bodies {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Body) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// AddBehavior registers a behavior. Behaviors whose body is missing are skipped during Step.
func (e *Engine) AddBehavior(bh Behavior) {
	e.behaviors = append(e.behaviors, bh)
}

// RemoveBehavior unregisters a behavior. Returns false if it was not registered.
func (e *Engine) RemoveBehavior(bh Behavior) bool {
	n := len(e.behaviors)
	e.behaviors = slices.DeleteFunc(e.behaviors, func(x Behavior) bool { return x == bh })
	return len(e.behaviors) != n
}

// Behaviors returns the number of registered behaviors
func (e *Engine) Behaviors() int {
	return len(e.behaviors)
}

// Step advances the world by dt (milliseconds) and returns the overlapping
// pairs after integration, sorted by (A, B).
func (e *Engine) Step(dt float64) []Pair {
	for _, bh := range e.behaviors {
		if b, ok := e.bodies[bh.BodyID()]; ok {
			bh.Apply(b)
		}
	}

	e.order = e.order[:0]
	for _, b := range e.bodies {
		b.Vel = r2.Add(b.Vel, r2.Scale(dt, b.acc))
		b.acc = r2.Vec{}
		b.Pos = r2.Add(b.Pos, r2.Scale(dt, b.Vel))
		e.contain(b)
		e.order = append(e.order, b)
	}
	slices.SortFunc(e.order, func(a, b *Body) int { return cmp.Compare(a.ID, b.ID) })

	pairs := e.detect()
	for _, p := range pairs {
		e.respond(e.bodies[p.A], e.bodies[p.B])
	}
	return pairs
}

// contain keeps the body inside the world box, bouncing it off the walls
func (e *Engine) contain(b *Body) {
	w, h := e.cfg.Width, e.cfg.Height
	r := b.Radius

	if 2*r >= w {
		b.Pos.X = w / 2
		b.Vel.X = 0
	} else if b.Pos.X-r < 0 {
		b.Pos.X = r
		if b.Vel.X < 0 {
			b.Vel.X, b.Vel.Y = e.bounce(b.Vel.X, b.Vel.Y)
		}
	} else if b.Pos.X+r > w {
		b.Pos.X = w - r
		if b.Vel.X > 0 {
			b.Vel.X, b.Vel.Y = e.bounce(b.Vel.X, b.Vel.Y)
		}
	}

	if 2*r >= h {
		b.Pos.Y = h / 2
		b.Vel.Y = 0
	} else if b.Pos.Y-r < 0 {
		b.Pos.Y = r
		if b.Vel.Y < 0 {
			b.Vel.Y, b.Vel.X = e.bounce(b.Vel.Y, b.Vel.X)
		}
	} else if b.Pos.Y+r > h {
		b.Pos.Y = h - r
		if b.Vel.Y > 0 {
			b.Vel.Y, b.Vel.X = e.bounce(b.Vel.Y, b.Vel.X)
		}
	}
}

// bounce reflects the normal component and applies Coulomb friction to the tangential one
func (e *Engine) bounce(vn, vt float64) (float64, float64) {
	impulse := (1 + e.cfg.EdgeRestitution) * math.Abs(vn)
	loss := math.Min(math.Abs(vt), e.cfg.EdgeFriction*impulse)
	return -vn * e.cfg.EdgeRestitution, vt - math.Copysign(loss, vt)
}

// detect runs the grid broad-phase and circle narrow-phase
func (e *Engine) detect() []Pair {
	e.grid.Clear()
	for _, b := range e.order {
		e.grid.Insert(b.Pos.X, b.Pos.Y, b.Radius, b.ID)
	}

	var pairs []Pair
	for _, a := range e.order {
		clear(e.seen)
		e.query = e.grid.QueryBuf(a.Pos.X, a.Pos.Y, a.Radius, e.query[:0])
		for _, id := range e.query {
			if id <= a.ID {
				continue
			}
			if _, dup := e.seen[id]; dup {
				continue
			}
			e.seen[id] = struct{}{}
			b := e.bodies[id]
			if CheckCollision(a.Pos.X, a.Pos.Y, a.Radius, b.Pos.X, b.Pos.Y, b.Radius) {
				pairs = append(pairs, Pair{A: a.ID, B: b.ID, RadiusA: a.Radius, RadiusB: b.Radius})
			}
		}
	}
	slices.SortFunc(pairs, func(p, q Pair) int {
		if c := cmp.Compare(p.A, q.A); c != 0 {
			return c
		}
		return cmp.Compare(p.B, q.B)
	})
	return pairs
}

// respond separates two overlapping bodies and exchanges a normal impulse
func (e *Engine) respond(a, b *Body) {
	d := r2.Sub(b.Pos, a.Pos)
	dist := r2.Norm(d)
	n := r2.Vec{X: 1}
	if dist > 0 {
		n = r2.Scale(1/dist, d)
	}
	invA, invB := 1/a.Mass(), 1/b.Mass()
	invSum := invA + invB

	if overlap := a.Radius + b.Radius - dist; overlap > 0 {
		a.Pos = r2.Sub(a.Pos, r2.Scale(overlap*invA/invSum, n))
		b.Pos = r2.Add(b.Pos, r2.Scale(overlap*invB/invSum, n))
	}

	vn := r2.Dot(r2.Sub(b.Vel, a.Vel), n)
	if vn >= 0 {
		return
	}
	j := -(1 + e.cfg.BodyRestitution) * vn / invSum
	a.Vel = r2.Sub(a.Vel, r2.Scale(j*invA, n))
	b.Vel = r2.Add(b.Vel, r2.Scale(j*invB, n))
}
