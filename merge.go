package main

import (
	"fmt"
	"math"

	"agar-server/physics"
)

// Absorption records one merge: Winner grew to NewRadius, Loser was removed
type Absorption struct {
	WinnerID    uint64
	LoserID     uint64
	WinnerKind  Kind
	LoserKind   Kind
	WinnerName  string
	LoserName   string
	WinnerOwner string
	LoserOwner  string
	LoserRadius float64
	NewRadius   float64
}

// BothPlayers reports whether the merge was between two players
func (a Absorption) BothPlayers() bool {
	return a.WinnerKind == KindPlayer && a.LoserKind == KindPlayer
}

// Text is the chat line announcing the merge
func (a Absorption) Text() string {
	return fmt.Sprintf("%s ate %s.", displayName(a.WinnerName, a.WinnerID), displayName(a.LoserName, a.LoserID))
}

func displayName(name string, id uint64) string {
	if name == "" {
		return fmt.Sprintf("Player %d", id)
	}
	return name
}

// Resolver applies the merge rule to collision pairs
type Resolver struct {
	minimumMergeDifference float64
}

// NewResolver creates a resolver with the given merge threshold
func NewResolver(minimumMergeDifference float64) *Resolver {
	return &Resolver{minimumMergeDifference: minimumMergeDifference}
}

// MergeOutcome evaluates the merge rule for two radii. It returns whether a
// merge happens, whether the first operand survives, and the merged radius.
func (r *Resolver) MergeOutcome(r1, r2 float64) (merge, firstWins bool, newRadius float64) {
	return r.MergeAreas(r1*r1, r2*r2)
}

// MergeAreas is MergeOutcome on squared radii. A normalized area difference
// at or below the threshold is a glancing contact; an exact tie favors the
// first operand.
func (r *Resolver) MergeAreas(area1, area2 float64) (merge, firstWins bool, newRadius float64) {
	combined := area1 + area2
	if combined == 0 {
		return false, false, 0
	}
	newRadius = math.Sqrt(combined)
	if math.Abs(area1/combined-area2/combined) <= r.minimumMergeDifference {
		return false, false, newRadius
	}
	return true, area1 >= area2, newRadius
}

// Resolve applies the merge rule to every pair in order. The caller holds the
// world lock. Pairs naming an entity removed earlier in the pass are skipped.
func (r *Resolver) Resolve(w *World, pairs []physics.Pair) []Absorption {
	var out []Absorption
	for _, p := range pairs {
		a := w.registry.Get(p.A)
		b := w.registry.Get(p.B)
		if a == nil || b == nil {
			continue
		}
		merge, firstWins, newRadius := r.MergeOutcome(a.Radius(), b.Radius())
		if !merge {
			continue
		}
		winner, loser := a, b
		if !firstWins {
			winner, loser = b, a
		}
		loserRadius := loser.Radius()
		winner.Body.Radius = newRadius
		w.removeEntity(loser.ID)

		out = append(out, Absorption{
			WinnerID:    winner.ID,
			LoserID:     loser.ID,
			WinnerKind:  winner.Kind,
			LoserKind:   loser.Kind,
			WinnerName:  winner.Name,
			LoserName:   loser.Name,
			WinnerOwner: winner.Owner,
			LoserOwner:  loser.Owner,
			LoserRadius: loserRadius,
			NewRadius:   newRadius,
		})
	}
	return out
}
