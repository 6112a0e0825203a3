// Package odesolve implements the three ODE integration strategies of
// spec.md §4.3: fixed-step Euler, adaptive 5th-order Runge-Kutta
// (Cash-Karp coefficients), and 2nd-order Rosenbrock (ROS2). All three
// share one interface so the chemistry engine can select among them with a
// single project-wide scalar (spec.md: "Solver selection is a per-project
// scalar, not per-species").
package odesolve

import "github.com/pkg/errors"

// ErrIntegrator is returned when a solver cannot make progress: too many
// consecutive step rejections (RK5) or an unrecoverable linear solve
// (ROS2).
var ErrIntegrator = errors.New("integrator: did not converge")

// DerivFunc evaluates dy/dt at (t, y) into dst. Implementations must not
// retain y or dst past the call.
type DerivFunc func(t float64, y, dst []float64) error

// Solver advances y in place from tNow towards tEnd and reports the step
// actually taken (== tEnd-tNow for fixed-step Euler; may be less for an
// adaptive solver, which takes a single internal step per call).
type Solver interface {
	// Step advances y (length n) using derivative function f, relative
	// tolerances rtol and absolute tolerances atol (both length n), and a
	// suggested initial step h0. It returns the step actually taken.
	Step(tNow, tEnd float64, y, rtol, atol []float64, h0 float64, f DerivFunc) (hTaken float64, err error)
}

// Kind names a solver selection, matching the SOLVER option keyword.
type Kind int

const (
	Euler Kind = iota
	RK5
	ROS2
)

// New returns a Solver of the requested kind sized for n equations.
func New(kind Kind, n int) Solver {
	switch kind {
	case Euler:
		return NewEulerSolver(n)
	case RK5:
		return NewRK5Solver(n)
	case ROS2:
		return NewROS2Solver(n)
	default:
		panic("odesolve: unknown solver kind")
	}
}
