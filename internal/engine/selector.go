package engine

import (
	"errors"
	"math/rand/v2"
)

// ErrNoHealthyTarget is returned when no target is eligible for
// selection: every candidate is unhealthy, zero-weight, or excluded.
var ErrNoHealthyTarget = errors.New("no healthy target available")

// selectTarget picks one target from a snapshot by weighted random
// draw, skipping excluded names. Candidates are walked in registration
// order with a cumulative weight sum; the draw lands on the first
// candidate whose running sum strictly exceeds r. The last candidate
// absorbs any floating-point residue.
func selectTarget(snap Snapshot, excluded map[string]bool) (TargetView, error) {
	var candidates []TargetView
	var total float64
	for _, t := range snap.Targets {
		if !t.Healthy || t.Weight <= 0 || excluded[t.Name] {
			continue
		}
		candidates = append(candidates, t)
		total += t.Weight
	}
	if len(candidates) == 0 {
		return TargetView{}, ErrNoHealthyTarget
	}

	r := rand.Float64() * total
	var cumulative float64
	for _, t := range candidates {
		cumulative += t.Weight
		if r < cumulative {
			return t, nil
		}
	}
	return candidates[len(candidates)-1], nil
}
