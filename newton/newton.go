// Package newton implements the damped Newton iteration (spec.md §4.2)
// used to zero a system of equilibrium residuals. The Jacobian is built by
// centered finite differences and factored with gonum's dense LU solver,
// grounded the same way other_examples' godesim NewtonRaphsonSolver drives
// gonum/diff/fd + gonum/mat.
package newton

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

const (
	numSig = 3  // significant digits required for convergence
	maxIt  = 20 // MAXIT
)

// ErrDidNotConverge is returned when the iteration exhausts maxIt steps
// without satisfying the convergence test.
var ErrDidNotConverge = errors.New("newton: did not converge")

// ErrSingular is returned when the Jacobian is singular to machine
// precision at some iterate.
var ErrSingular = errors.New("newton: singular jacobian")

// ResidualFunc evaluates F(t, x) into dst. It must not retain x or dst.
type ResidualFunc func(t float64, x, dst []float64) error

// Solver holds the Jacobian matrix and finite-difference settings for one
// fixed problem size n, sized once at open time. Solve still allocates on
// every iteration: the right-hand side and correction vectors, and the
// temporaries of the finite-difference and LU steps.
type Solver struct {
	n      int
	x0     []float64
	f0     []float64
	jac    *mat.Dense
	delta  mat.VecDense
	rhs    mat.VecDense
	jacSet *fd.JacobianSettings
}

// NewSolver allocates a solver for an n-dimensional residual system.
func NewSolver(n int) *Solver {
	return &Solver{
		n:   n,
		x0:  make([]float64, n),
		f0:  make([]float64, n),
		jac: mat.NewDense(n, n, nil),
		jacSet: &fd.JacobianSettings{
			Formula: fd.Central,
		},
	}
}

// Solve performs damped Newton iteration starting from x (updated in
// place) until convergence, maxIt iterations, or a singular Jacobian.
func (s *Solver) Solve(t float64, x []float64, f ResidualFunc) error {
	n := s.n
	residual := func(dst, xv []float64) {
		if err := f(t, xv, dst); err != nil {
			// fd.Jacobian has no error channel; surface NaN so the caller's
			// convergence/singularity checks below catch the fault instead
			// of silently propagating a stale residual.
			for i := range dst {
				dst[i] = math.NaN()
			}
		}
	}

	for iter := 0; iter < maxIt; iter++ {
		if err := f(t, x, s.f0); err != nil {
			return err
		}

		fd.Jacobian(s.jac, residual, x, s.jacSet)

		b := mat.NewVecDense(n, append([]float64(nil), s.f0...))
		for i := 0; i < n; i++ {
			b.SetVec(i, -b.AtVec(i))
		}

		var delta mat.VecDense
		if err := delta.SolveVec(s.jac, b); err != nil {
			return ErrSingular
		}

		converged := true
		for i := 0; i < n; i++ {
			d := delta.AtVec(i)
			x[i] += d
			tol := 0.5 * math.Pow(10, -float64(numSig))
			if math.Abs(d) >= tol*math.Max(math.Abs(x[i]), 1e-6) {
				converged = false
			}
		}
		if converged {
			return nil
		}
	}
	return ErrDidNotConverge
}
