package solver

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DOF6 is the minimal unconstrained parametrization of a rigid pose:
// three translation components followed by three rotation parameters
// (a scaled stereographic projection of the rotation quaternion, see
// codec.go).
type DOF6 [6]float64

// MarkerKind tags a constraint marker as a point or a direction. The
// kind is part of the marker's identity and drives the residual
// semantics.
type MarkerKind int

const (
	// Point markers constrain positions; paired points contribute
	// their world-space Euclidean distance to the residual.
	Point MarkerKind = iota
	// Direction markers constrain orientations; paired directions
	// contribute the dot product of their rotated world vectors.
	Direction
)

// String returns a human-readable kind name for error messages.
func (k MarkerKind) String() string {
	switch k {
	case Point:
		return "point"
	case Direction:
		return "direction"
	default:
		return "unknown"
	}
}

// Marker is a point or unit direction expressed in an entity's local
// frame. Markers are paired across two entities to define a geometric
// relationship between them.
type Marker struct {
	Kind MarkerKind
	V    v3.Vec
}

// PointMarker returns a point marker at local coordinates v.
func PointMarker(v v3.Vec) Marker {
	return Marker{Kind: Point, V: v}
}

// DirectionMarker returns a direction marker along local vector v.
func DirectionMarker(v v3.Vec) Marker {
	return Marker{Kind: Direction, V: v}
}

// Constraint holds two ordered marker sequences: First in the frame of
// the key's first entity, Second in the frame of its second entity.
// The i-th marker of First pairs with the i-th of Second, and paired
// markers must share a kind.
type Constraint struct {
	First  []Marker
	Second []Marker
}

// ConstraintKey identifies the ordered pair of entities a constraint
// couples. Entities are 0-based indices into the solver's entity
// sequence; First and Second may be equal (a degenerate constraint on
// a single entity).
type ConstraintKey struct {
	First, Second int
}

// ConstraintSet is a mapping from entity pairs to constraints that
// preserves insertion order. Order matters: the position of a key
// fixes its row index in the residual vector and the Jacobian
// sparsity pattern.
type ConstraintSet struct {
	keys    []ConstraintKey
	entries map[ConstraintKey]Constraint
}

// NewConstraintSet returns an empty constraint set.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{entries: make(map[ConstraintKey]Constraint)}
}

// Add inserts or replaces the constraint for key. Replacing keeps the
// key's original position in iteration order.
func (cs *ConstraintSet) Add(key ConstraintKey, c Constraint) {
	if _, exists := cs.entries[key]; !exists {
		cs.keys = append(cs.keys, key)
	}
	cs.entries[key] = c
}

// Len returns the number of constraints in the set.
func (cs *ConstraintSet) Len() int {
	return len(cs.keys)
}

// At returns the i-th constraint in insertion order.
func (cs *ConstraintSet) At(i int) (ConstraintKey, Constraint) {
	key := cs.keys[i]
	return key, cs.entries[key]
}
