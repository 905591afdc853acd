// Package levmar implements the nlls.Solver interface with a dense
// Levenberg-Marquardt iteration built on gonum's mat package. The
// Jacobian is approximated by forward differences; a sparsity pattern,
// when supplied, limits which entries are differenced.
package levmar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chazu/tenon/pkg/nlls"
)

// Compile-time interface check.
var _ nlls.Solver = (*Solver)(nil)

// Iteration defaults. Zero-valued Options fields fall back to these.
const (
	defaultMaxIterations  = 200
	defaultStepTolerance  = 1e-12
	defaultCostTolerance  = 1e-12
	defaultInitialDamping = 1e-3

	// maxDampingTries bounds how often the damping factor is raised
	// within one iteration before the solver gives up improving.
	maxDampingTries = 16
)

// sqrtEps is the forward-difference step scale.
var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

// Options tunes the Levenberg-Marquardt iteration.
type Options struct {
	// MaxIterations bounds the number of accepted steps.
	MaxIterations int
	// StepTolerance stops the iteration when the accepted step norm
	// falls below StepTolerance relative to the parameter norm.
	StepTolerance float64
	// CostTolerance stops the iteration when an accepted step improves
	// the cost by less than CostTolerance relative to the current cost.
	CostTolerance float64
	// InitialDamping is the starting LM damping factor. It is lowered
	// after accepted steps and raised after rejected ones.
	InitialDamping float64
}

// Solver is a Levenberg-Marquardt nonlinear least-squares backend.
// A Solver holds only configuration and is safe for concurrent use.
type Solver struct {
	opts Options
}

// New returns a Solver with the given options. Zero-valued fields
// select the package defaults.
func New(opts Options) *Solver {
	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.StepTolerance == 0 {
		opts.StepTolerance = defaultStepTolerance
	}
	if opts.CostTolerance == 0 {
		opts.CostTolerance = defaultCostTolerance
	}
	if opts.InitialDamping == 0 {
		opts.InitialDamping = defaultInitialDamping
	}
	return &Solver{opts: opts}
}

// Solve minimizes the sum of squared residuals starting from x0.
// An empty residual vector is trivially minimal, so x0 is returned
// unchanged. Residual errors abort the solve with no result.
func (s *Solver) Solve(f nlls.Residual, x0 []float64, sparsity *mat.Dense) ([]float64, error) {
	x := append([]float64(nil), x0...)

	r, err := f(x)
	if err != nil {
		return nil, err
	}
	m, n := len(r), len(x)
	if m == 0 {
		return x, nil
	}
	if sparsity != nil {
		sr, sc := sparsity.Dims()
		if sr != m || sc != n {
			return nil, fmt.Errorf("levmar: sparsity shape %dx%d, want %dx%d", sr, sc, m, n)
		}
	}

	cost := sumSquares(r)
	damping := s.opts.InitialDamping

	for iter := 0; iter < s.opts.MaxIterations; iter++ {
		jac, err := s.jacobian(f, x, r, sparsity)
		if err != nil {
			return nil, err
		}

		improved := false
		for try := 0; try < maxDampingTries; try++ {
			step, err := dampedStep(jac, r, damping)
			if err != nil {
				// Singular system; raise damping and retry.
				damping *= 10
				continue
			}

			xNew := make([]float64, n)
			for j := range xNew {
				xNew[j] = x[j] + step[j]
			}
			rNew, err := f(xNew)
			if err != nil {
				return nil, err
			}
			costNew := sumSquares(rNew)

			if costNew < cost {
				x, r = xNew, rNew
				gain := cost - costNew
				cost = costNew
				damping = math.Max(damping/10, 1e-14)
				improved = true

				if norm(step) <= s.opts.StepTolerance*(1+norm(x)) {
					return x, nil
				}
				if gain <= s.opts.CostTolerance*(1+cost) {
					return x, nil
				}
				break
			}
			damping *= 10
		}
		if !improved {
			// No step reduces the cost; return the best iterate.
			break
		}
	}
	return x, nil
}

// jacobian approximates df/dx at x by forward differences. r is the
// residual already evaluated at x. Sparsity, when non-nil, skips
// columns no row depends on and zeroes entries marked absent.
func (s *Solver) jacobian(f nlls.Residual, x, r []float64, sparsity *mat.Dense) (*mat.Dense, error) {
	m, n := len(r), len(x)
	jac := mat.NewDense(m, n, nil)

	xp := append([]float64(nil), x...)
	for j := 0; j < n; j++ {
		if sparsity != nil && columnEmpty(sparsity, j, m) {
			continue
		}
		h := sqrtEps * math.Max(math.Abs(x[j]), 1)
		xp[j] = x[j] + h
		rp, err := f(xp)
		if err != nil {
			return nil, err
		}
		xp[j] = x[j]
		if len(rp) != m {
			return nil, fmt.Errorf("levmar: residual length changed from %d to %d", m, len(rp))
		}
		for i := 0; i < m; i++ {
			if sparsity != nil && sparsity.At(i, j) == 0 {
				continue
			}
			jac.Set(i, j, (rp[i]-r[i])/h)
		}
	}
	return jac, nil
}

// dampedStep solves the damped least-squares subproblem
//
//	min ‖J·d + r‖² + damping·‖d‖²
//
// via QR factorization of the augmented system [J; √damping·I].
func dampedStep(jac *mat.Dense, r []float64, damping float64) ([]float64, error) {
	m, n := jac.Dims()

	aug := mat.NewDense(m+n, n, nil)
	rhs := mat.NewVecDense(m+n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, jac.At(i, j))
		}
		rhs.SetVec(i, -r[i])
	}
	sd := math.Sqrt(damping)
	for j := 0; j < n; j++ {
		aug.Set(m+j, j, sd)
	}

	var qr mat.QR
	qr.Factorize(aug)

	var d mat.VecDense
	if err := qr.SolveVecTo(&d, false, rhs); err != nil {
		return nil, err
	}

	step := make([]float64, n)
	for j := range step {
		step[j] = d.AtVec(j)
	}
	return step, nil
}

// columnEmpty reports whether column j of the sparsity pattern is all
// zero, meaning no residual row depends on parameter j.
func columnEmpty(sparsity *mat.Dense, j, rows int) bool {
	for i := 0; i < rows; i++ {
		if sparsity.At(i, j) != 0 {
			return false
		}
	}
	return true
}

func sumSquares(v []float64) float64 {
	var sum float64
	for _, e := range v {
		sum += e * e
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(sumSquares(v))
}
