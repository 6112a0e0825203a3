package odesolve

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// gamma is the L-stable Rosenbrock parameter, γ = 1 + 1/√2.
var gamma = 1 + 1/math.Sqrt2

// ROS2Solver is the 2nd-order L-stable Rosenbrock solver used when
// stiffness is suspected (spec.md §4.3). It requires a Jacobian, computed
// here by centered finite differences once per Step call.
type ROS2Solver struct {
	n                  int
	f0, f1             []float64
	k1, k2             []float64
	ytmp               []float64
	y1, y2             []float64
	diff, scale, ratio []float64
	jac, w             *mat.Dense
	jacSet             *fd.JacobianSettings
}

// NewROS2Solver allocates a ROS2 solver for n equations.
func NewROS2Solver(n int) *ROS2Solver {
	mk := func() []float64 { return make([]float64, n) }
	return &ROS2Solver{
		n: n,
		f0: mk(), f1: mk(), k1: mk(), k2: mk(), ytmp: mk(), y1: mk(), y2: mk(),
		diff: mk(), scale: mk(), ratio: mk(),
		jac:    mat.NewDense(n, n, nil),
		w:      mat.NewDense(n, n, nil),
		jacSet: &fd.JacobianSettings{Formula: fd.Central},
	}
}

// Step implements Solver.
func (s *ROS2Solver) Step(tNow, tEnd float64, y, rtol, atol []float64, h0 float64, f DerivFunc) (float64, error) {
	n := s.n
	h := math.Min(h0, tEnd-tNow)
	if h <= 0 {
		h = tEnd - tNow
	}

	// Jacobian is computed once per Step call at (tNow, y); it is reused
	// by every rejected and retried attempt and by both internal stages.
	deriv := func(dst, yv []float64) {
		if err := f(tNow, yv, dst); err != nil {
			for i := range dst {
				dst[i] = math.NaN()
			}
		}
	}
	fd.Jacobian(s.jac, deriv, y, s.jacSet)

	for reject := 0; ; reject++ {
		if reject >= maxRejects {
			return 0, ErrIntegrator
		}

		// W = (1/(γh)) I - J
		s.w.Copy(s.jac)
		s.w.Scale(-1, s.w)
		inv := 1 / (gamma * h)
		for i := 0; i < n; i++ {
			s.w.Set(i, i, s.w.At(i, i)+inv)
		}

		if err := f(tNow, y, s.f0); err != nil {
			return 0, err
		}
		b1 := mat.NewVecDense(n, append([]float64(nil), s.f0...))
		var k1v mat.VecDense
		if err := k1v.SolveVec(s.w, b1); err != nil {
			return 0, ErrIntegrator
		}
		// Each stage solves W·k = rhs, so k is γh times the stage slope;
		// dividing by γ turns it into a state increment.
		for i := 0; i < n; i++ {
			s.k1[i] = k1v.AtVec(i)
			s.ytmp[i] = y[i] + s.k1[i]/gamma
		}

		if err := f(tNow+h, s.ytmp, s.f1); err != nil {
			return 0, err
		}
		rhs2 := make([]float64, n)
		for i := 0; i < n; i++ {
			rhs2[i] = s.f1[i] - 2*inv*s.k1[i]
		}
		b2 := mat.NewVecDense(n, rhs2)
		var k2v mat.VecDense
		if err := k2v.SolveVec(s.w, b2); err != nil {
			return 0, ErrIntegrator
		}
		for i := 0; i < n; i++ {
			s.k2[i] = k2v.AtVec(i)
		}

		for i := 0; i < n; i++ {
			s.y1[i] = y[i] + s.k1[i]/gamma
			s.y2[i] = y[i] + (1.5*s.k1[i]+0.5*s.k2[i])/gamma
			s.scale[i] = atol[i] + rtol[i]*math.Abs(s.y2[i])
		}
		floats.SubTo(s.diff, s.y2, s.y1)
		for i := range s.diff {
			s.diff[i] = math.Abs(s.diff[i])
		}
		floats.DivTo(s.ratio, s.diff, s.scale)
		maxErr := floats.Max(s.ratio)

		if maxErr <= 1 {
			copy(y, s.y2)
			return h, nil
		}

		shrink := safetyFactor * math.Pow(maxErr, -1./2.)
		h *= math.Min(math.Max(shrink, minShrink), maxGrow)
	}
}
