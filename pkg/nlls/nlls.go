// Package nlls defines the abstract nonlinear least-squares interface
// consumed by the mate solver. Implementations (levmar) provide the
// minimization behind this interface. The abstraction allows swapping
// backends without changing the rest of the system.
package nlls

import "gonum.org/v1/gonum/mat"

// Residual evaluates the residual vector at x. The optimizer minimizes
// the sum of squared components. Implementations must not retain x.
// A non-nil error aborts the surrounding solve immediately.
type Residual func(x []float64) ([]float64, error)

// Solver is the abstract nonlinear least-squares backend.
//
// Solve starts from x0 and returns the final iterate. sparsity, when
// non-nil, is an advisory (rows × len(x0)) 0/1 matrix marking which
// parameters each residual row can depend on; it must be a
// conservative superset of the true dependency pattern. Solvers return
// their best iterate regardless of the residual magnitude reached:
// poor convergence is not an error.
type Solver interface {
	Solve(f Residual, x0 []float64, sparsity *mat.Dense) ([]float64, error)
}
