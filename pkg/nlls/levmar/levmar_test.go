package levmar

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSolveLinearFit(t *testing.T) {
	// Fit y = a*t + b to exact line data; the minimum is (a,b) = (2,-1)
	// with zero residual.
	ts := []float64{0, 1, 2, 3, 4}
	ys := make([]float64, len(ts))
	for i, v := range ts {
		ys[i] = 2*v - 1
	}
	f := func(x []float64) ([]float64, error) {
		rv := make([]float64, len(ts))
		for i := range ts {
			rv[i] = x[0]*ts[i] + x[1] - ys[i]
		}
		return rv, nil
	}

	got, err := New(Options{}).Solve(f, []float64{0, 0}, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(got[0]-2) > 1e-6 || math.Abs(got[1]+1) > 1e-6 {
		t.Errorf("Solve = %v, want (2, -1)", got)
	}
}

func TestSolveExponentialRate(t *testing.T) {
	// Recover the rate of y = exp(0.5 t) from samples.
	ts := []float64{0, 0.5, 1, 1.5, 2}
	f := func(x []float64) ([]float64, error) {
		rv := make([]float64, len(ts))
		for i, v := range ts {
			rv[i] = math.Exp(x[0]*v) - math.Exp(0.5*v)
		}
		return rv, nil
	}

	got, err := New(Options{}).Solve(f, []float64{0}, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(got[0]-0.5) > 1e-6 {
		t.Errorf("rate = %v, want 0.5", got[0])
	}
}

func TestSolveEmptyResidual(t *testing.T) {
	f := func(x []float64) ([]float64, error) { return nil, nil }
	x0 := []float64{1, 2, 3}

	got, err := New(Options{}).Solve(f, x0, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i := range x0 {
		if got[i] != x0[i] {
			t.Errorf("x[%d] = %v, want %v (unchanged)", i, got[i], x0[i])
		}
	}
	// The iterate must be a copy, not an alias of x0.
	got[0] = 99
	if x0[0] == 99 {
		t.Error("Solve aliased its result to x0")
	}
}

func TestSolveResidualError(t *testing.T) {
	boom := errors.New("boom")
	f := func(x []float64) ([]float64, error) { return nil, boom }

	if _, err := New(Options{}).Solve(f, []float64{0}, nil); !errors.Is(err, boom) {
		t.Errorf("Solve error = %v, want boom", err)
	}
}

func TestSolveSparsityShapeMismatch(t *testing.T) {
	f := func(x []float64) ([]float64, error) { return []float64{x[0]}, nil }
	bad := mat.NewDense(2, 3, nil)

	if _, err := New(Options{}).Solve(f, []float64{1}, bad); err == nil {
		t.Error("Solve accepted a mis-shaped sparsity matrix")
	}
}

func TestSolveSparsityMatchesDense(t *testing.T) {
	// A separable problem: each residual depends on one parameter.
	// The block-diagonal sparsity hint must not change the answer.
	f := func(x []float64) ([]float64, error) {
		return []float64{x[0] - 1, x[1] - 2, x[2] + 3}, nil
	}
	x0 := []float64{10, 10, 10}

	sp := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		sp.Set(i, i, 1)
	}

	dense, err := New(Options{}).Solve(f, x0, nil)
	if err != nil {
		t.Fatalf("dense Solve: %v", err)
	}
	sparse, err := New(Options{}).Solve(f, x0, sp)
	if err != nil {
		t.Fatalf("sparse Solve: %v", err)
	}

	want := []float64{1, 2, -3}
	for i := range want {
		if math.Abs(dense[i]-want[i]) > 1e-6 {
			t.Errorf("dense x[%d] = %v, want %v", i, dense[i], want[i])
		}
		if math.Abs(sparse[i]-want[i]) > 1e-6 {
			t.Errorf("sparse x[%d] = %v, want %v", i, sparse[i], want[i])
		}
	}
}

func TestSolveReturnsBestIterateOnStall(t *testing.T) {
	// A residual that cannot reach zero: |x| + 1. The solver must
	// still return a finite iterate near the minimum, not fail.
	f := func(x []float64) ([]float64, error) {
		return []float64{math.Abs(x[0]) + 1}, nil
	}

	got, err := New(Options{MaxIterations: 50}).Solve(f, []float64{5}, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.IsNaN(got[0]) || math.Abs(got[0]) > 5 {
		t.Errorf("iterate = %v, want within [-5, 5]", got[0])
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(Options{})
	if s.opts.MaxIterations != defaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", s.opts.MaxIterations, defaultMaxIterations)
	}
	if s.opts.InitialDamping != defaultInitialDamping {
		t.Errorf("InitialDamping = %v, want %v", s.opts.InitialDamping, defaultInitialDamping)
	}
}
