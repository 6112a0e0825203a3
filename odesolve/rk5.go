package odesolve

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Cash-Karp coefficients for the embedded 4th/5th order Runge-Kutta pair.
const (
	ckC2, ckC3, ckC4, ckC5, ckC6 = 1. / 5., 3. / 10., 3. / 5., 1., 7. / 8.

	ckA21 = 1. / 5.
	ckA31, ckA32 = 3. / 40., 9. / 40.
	ckA41, ckA42, ckA43 = 3. / 10., -9. / 10., 6. / 5.
	ckA51, ckA52, ckA53, ckA54 = -11. / 54., 5. / 2., -70. / 27., 35. / 27.
	ckA61, ckA62, ckA63, ckA64, ckA65 = 1631. / 55296., 175. / 512., 575. / 13824., 44275. / 110592., 253. / 4096.

	ckB1, ckB3, ckB4, ckB6 = 37. / 378., 250. / 621., 125. / 594., 512. / 1771.

	ckBs1, ckBs3, ckBs4, ckBs5, ckBs6 = 2825. / 27648., 18575. / 48384., 13525. / 55296., 277. / 14336., 1. / 4.
)

const (
	maxRejects   = 100
	safetyFactor = 0.9
	minShrink    = 0.1
	maxGrow      = 5.0
)

// RK5Solver is the adaptive Cash-Karp embedded Runge-Kutta solver.
type RK5Solver struct {
	n                      int
	k1, k2, k3, k4, k5, k6 []float64
	ytmp, y5, y4           []float64
	diff, scale, ratio     []float64
}

// NewRK5Solver allocates an RK5 solver for n equations.
func NewRK5Solver(n int) *RK5Solver {
	mk := func() []float64 { return make([]float64, n) }
	return &RK5Solver{
		n: n,
		k1: mk(), k2: mk(), k3: mk(), k4: mk(), k5: mk(), k6: mk(),
		ytmp: mk(), y5: mk(), y4: mk(),
		diff: mk(), scale: mk(), ratio: mk(),
	}
}

// Step implements Solver: it attempts successively smaller steps until the
// embedded error estimate is accepted, then returns the accepted step
// (which may be less than tEnd-tNow).
func (s *RK5Solver) Step(tNow, tEnd float64, y, rtol, atol []float64, h0 float64, f DerivFunc) (float64, error) {
	n := s.n
	h := math.Min(h0, tEnd-tNow)
	if h <= 0 {
		h = tEnd - tNow
	}

	for reject := 0; ; reject++ {
		if reject >= maxRejects {
			return 0, ErrIntegrator
		}

		if err := f(tNow, y, s.k1); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			s.ytmp[i] = y[i] + h*ckA21*s.k1[i]
		}
		if err := f(tNow+ckC2*h, s.ytmp, s.k2); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			s.ytmp[i] = y[i] + h*(ckA31*s.k1[i]+ckA32*s.k2[i])
		}
		if err := f(tNow+ckC3*h, s.ytmp, s.k3); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			s.ytmp[i] = y[i] + h*(ckA41*s.k1[i]+ckA42*s.k2[i]+ckA43*s.k3[i])
		}
		if err := f(tNow+ckC4*h, s.ytmp, s.k4); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			s.ytmp[i] = y[i] + h*(ckA51*s.k1[i]+ckA52*s.k2[i]+ckA53*s.k3[i]+ckA54*s.k4[i])
		}
		if err := f(tNow+ckC5*h, s.ytmp, s.k5); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			s.ytmp[i] = y[i] + h*(ckA61*s.k1[i]+ckA62*s.k2[i]+ckA63*s.k3[i]+ckA64*s.k4[i]+ckA65*s.k5[i])
		}
		if err := f(tNow+ckC6*h, s.ytmp, s.k6); err != nil {
			return 0, err
		}

		for i := 0; i < n; i++ {
			s.y5[i] = y[i] + h*(ckB1*s.k1[i]+ckB3*s.k3[i]+ckB4*s.k4[i]+ckB6*s.k6[i])
			s.y4[i] = y[i] + h*(ckBs1*s.k1[i]+ckBs3*s.k3[i]+ckBs4*s.k4[i]+ckBs5*s.k5[i]+ckBs6*s.k6[i])
			s.scale[i] = atol[i] + rtol[i]*math.Abs(s.y5[i])
		}
		floats.SubTo(s.diff, s.y5, s.y4)
		for i := range s.diff {
			s.diff[i] = math.Abs(s.diff[i])
		}
		floats.DivTo(s.ratio, s.diff, s.scale)
		maxErr := floats.Max(s.ratio)

		if maxErr <= 1 {
			copy(y, s.y5)
			return h, nil
		}

		shrink := safetyFactor * math.Pow(maxErr, -1./5.)
		h *= math.Min(math.Max(shrink, minShrink), maxGrow)
	}
}
