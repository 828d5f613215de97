package model

import "github.com/rotisserie/eris"

// PoolStatus is the lifecycle stage of a keyword pool.
type PoolStatus string

const (
	PoolStatusUploaded PoolStatus = "uploaded"
	PoolStatusCleaned  PoolStatus = "cleaned"
	PoolStatusGrouped  PoolStatus = "grouped"
)

// Valid reports whether the status is one of the known lifecycle stages.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolStatusUploaded, PoolStatusCleaned, PoolStatusGrouped:
		return true
	}
	return false
}

// poolTransitions enumerates the legal status edges. Re-running a stage
// keeps the pool in the same status, so self-edges are legal for cleaned
// (re-clean) and grouped (regenerate).
var poolTransitions = map[PoolStatus][]PoolStatus{
	PoolStatusUploaded: {PoolStatusCleaned},
	PoolStatusCleaned:  {PoolStatusCleaned, PoolStatusGrouped, PoolStatusUploaded},
	PoolStatusGrouped:  {PoolStatusGrouped},
}

// CanTransition reports whether a pool may move from one status to another.
func CanTransition(from, to PoolStatus) bool {
	for _, next := range poolTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error naming both statuses when the edge
// is not legal. Every operation that mutates pool status consults this
// instead of re-implementing the guard at its own call site.
func ValidateTransition(from, to PoolStatus) error {
	if !from.Valid() {
		return eris.Errorf("model: unknown pool status %q", from)
	}
	if !to.Valid() {
		return eris.Errorf("model: unknown pool status %q", to)
	}
	if !CanTransition(from, to) {
		return eris.Errorf("model: pool status is %q, cannot transition to %q", from, to)
	}
	return nil
}
