package physics

import "gonum.org/v1/gonum/spatial/r2"

// minMass keeps zero-radius bodies out of divide-by-zero territory
const minMass = 1e-6

// Body is a circular body owned by the engine. Position and velocity are
// mutated only by Step; Radius may be changed by the caller between steps.
type Body struct {
	ID     uint64
	Pos    r2.Vec
	Vel    r2.Vec
	Radius float64

	// The engine does not rotate bodies; Angle keeps its initial value.
	Angle float64

	acc r2.Vec
}

// NewBody creates a body at pos with the given velocity and radius
func NewBody(id uint64, pos, vel r2.Vec, radius float64) *Body {
	return &Body{ID: id, Pos: pos, Vel: vel, Radius: radius}
}

// Mass is proportional to area. The pi factor is dropped since only ratios matter.
func (b *Body) Mass() float64 {
	m := b.Radius * b.Radius
	if m < minMass {
		return minMass
	}
	return m
}

// Accelerate adds to the acceleration accumulated for the next integration
func (b *Body) Accelerate(a r2.Vec) {
	b.acc = r2.Add(b.acc, a)
}
