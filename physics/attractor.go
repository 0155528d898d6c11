package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Behavior is applied to a single body once per step, before integration.
type Behavior interface {
	BodyID() uint64
	Apply(b *Body)
}

// Attractor pulls one body toward a target point. Inside Min (or beyond Max
// when Max > 0) no force is applied. The force is Strength / dist^Order.
type Attractor struct {
	bodyID   uint64
	Target   r2.Vec
	Strength float64
	Min      float64
	Max      float64
	Order    float64
}

// NewAttractor binds an attractor to the body with the given id
func NewAttractor(bodyID uint64, target r2.Vec, strength, min, order float64) *Attractor {
	return &Attractor{
		bodyID:   bodyID,
		Target:   target,
		Strength: strength,
		Min:      min,
		Order:    order,
	}
}

// BodyID returns the id of the body this attractor drives
func (a *Attractor) BodyID() uint64 {
	return a.bodyID
}

// Apply accelerates b toward the target
func (a *Attractor) Apply(b *Body) {
	d := r2.Sub(a.Target, b.Pos)
	dist := r2.Norm(d)
	if dist == 0 || dist <= a.Min {
		return
	}
	if a.Max > 0 && dist >= a.Max {
		return
	}
	g := a.Strength
	if a.Order != 0 {
		g /= math.Pow(dist, a.Order)
	}
	b.Accelerate(r2.Scale(g/dist, d))
}
