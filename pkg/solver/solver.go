// Package solver positions rigid bodies in 3D so that pairwise
// geometric constraints (point coincidence, direction alignment) are
// satisfied as closely as possible. It minimizes a nonlinear
// least-squares residual over the bodies' combined 6-DOF poses and is
// the numerical core behind assembly mate resolution.
package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/chazu/tenon/pkg/geom"
	"github.com/chazu/tenon/pkg/nlls"
	"github.com/chazu/tenon/pkg/nlls/levmar"
)

// ErrMarkerKindMismatch is returned by Solve when a constraint pairs
// markers of different kinds, or a marker's kind is unknown.
var ErrMarkerKindMismatch = errors.New("solver: marker kind mismatch")

// ConstraintSolver holds an immutable snapshot of entity poses and
// constraints taken at construction. Solve is a pure read of this
// snapshot; independent solvers may run concurrently.
type ConstraintSolver struct {
	entities    []DOF6
	constraints *ConstraintSet
	ne, nc      int
	backend     nlls.Solver
}

// New creates a solver for the given initial entity poses and
// constraint set. Entity indices in constraint keys refer to positions
// in the entities slice. A nil backend selects the default
// Levenberg-Marquardt implementation.
//
// Initial poses are decoded into their 6-DOF parametrization here;
// a 180° initial rotation therefore poisons the snapshot immediately
// (see decodePose). Construction itself never fails.
func New(entities []geom.Pose, constraints *ConstraintSet, backend nlls.Solver) *ConstraintSolver {
	dofs := make([]DOF6, len(entities))
	for i, p := range entities {
		dofs[i] = decodePose(p)
	}

	snapshot := NewConstraintSet()
	for i := 0; i < constraints.Len(); i++ {
		key, c := constraints.At(i)
		snapshot.Add(key, Constraint{
			First:  append([]Marker(nil), c.First...),
			Second: append([]Marker(nil), c.Second...),
		})
	}

	if backend == nil {
		backend = levmar.New(levmar.Options{})
	}
	return &ConstraintSolver{
		entities:    dofs,
		constraints: snapshot,
		ne:          len(entities),
		nc:          snapshot.Len(),
		backend:     backend,
	}
}

// Solve runs the nonlinear least-squares minimization once and returns
// the final pose of every entity, in input order. The backend's final
// iterate is always accepted: poor convergence is not an error, and
// callers wanting a pass/fail judgment must evaluate the fit
// themselves. The only error Solve raises itself is a marker kind
// mismatch discovered during residual evaluation.
func (s *ConstraintSolver) Solve() ([]geom.Pose, error) {
	x0 := make([]float64, 0, 6*s.ne)
	for _, d := range s.entities {
		x0 = append(x0, d[:]...)
	}

	x, err := s.backend.Solve(s.cost, x0, s.jacobianSparsity())
	if err != nil {
		return nil, err
	}

	poses := make([]geom.Pose, s.ne)
	for i := range poses {
		poses[i] = encodePose(sliceDOF6(x, i))
	}
	return poses, nil
}

// jacobianSparsity builds the (nc × 6·ne) 0/1 dependency pattern: the
// row of constraint (k1,k2) marks the six parameter columns of each of
// the two entities. The pattern is an advisory superset hint for the
// backend's numerical Jacobian; over-marking is safe, under-marking
// corrupts convergence. Returns nil when there are no constraints.
func (s *ConstraintSolver) jacobianSparsity() *mat.Dense {
	if s.nc == 0 {
		return nil
	}
	rv := mat.NewDense(s.nc, 6*s.ne, nil)
	for i := 0; i < s.nc; i++ {
		key, _ := s.constraints.At(i)
		for j := 0; j < 6; j++ {
			rv.Set(i, 6*key.First+j, 1)
			rv.Set(i, 6*key.Second+j, 1)
		}
	}
	return rv
}

// cost is the residual function handed to the backend: one scalar row
// per constraint. Point pairs contribute the Euclidean distance of
// their world positions; direction pairs contribute the raw dot
// product of their rotated world vectors. All pair contributions of a
// constraint sum into its single row.
func (s *ConstraintSolver) cost(x []float64) ([]float64, error) {
	poses := make([]geom.Pose, s.ne)
	for i := range poses {
		poses[i] = encodePose(sliceDOF6(x, i))
	}

	rv := make([]float64, s.nc)
	for i := 0; i < s.nc; i++ {
		key, c := s.constraints.At(i)
		p1 := poses[key.First]
		p2 := poses[key.Second]

		n := len(c.First)
		if len(c.Second) < n {
			n = len(c.Second)
		}
		for j := 0; j < n; j++ {
			m1, m2 := c.First[j], c.Second[j]
			if m1.Kind != m2.Kind {
				return nil, fmt.Errorf("constraint (%d,%d) pair %d: %w: %v vs %v",
					key.First, key.Second, j, ErrMarkerKindMismatch, m1.Kind, m2.Kind)
			}
			switch m1.Kind {
			case Point:
				rv[i] += p1.Transform(m1.V).Sub(p2.Transform(m2.V)).Length()
			case Direction:
				rv[i] += p1.Rotate(m1.V).Dot(p2.Rotate(m2.V))
			default:
				return nil, fmt.Errorf("constraint (%d,%d) pair %d: %w: kind %d",
					key.First, key.Second, j, ErrMarkerKindMismatch, int(m1.Kind))
			}
		}
	}
	return rv, nil
}

// sliceDOF6 extracts entity i's six parameters from the flat vector.
func sliceDOF6(x []float64, i int) DOF6 {
	var d DOF6
	copy(d[:], x[6*i:6*(i+1)])
	return d
}
