package chem

import (
	"github.com/watermodel/msx/mathexpr"
	"github.com/watermodel/msx/newton"
	"github.com/watermodel/msx/odesolve"
)

// Coupling selects how tightly equilibrium/formula species track the
// rate species during one reaction step (spec.md §4.2).
type Coupling uint8

const (
	// CouplingNone resolves equilibrium and formula species once before
	// and once after the rate-species integration, not at every internal
	// solver stage.
	CouplingNone Coupling = iota
	// CouplingFull re-solves equilibrium and formula species at every
	// derivative evaluation the ODE solver makes, so a stiff equilibrium
	// can feed back into the rate-species derivative within the step.
	CouplingFull
)

// ResolverFactory builds a mathexpr.Resolver bound to the current
// concentration snapshot c (indexed by species index). The caller owns
// variable-slot translation and supplies terms, parameters, constants
// and hydraulic variables; this package only ever asks it to resolve
// slots while evaluating a species' own compiled expression.
type ResolverFactory func(c []float64) mathexpr.Resolver

// Engine evaluates one network's species kinetics in the pipe and tank
// zones. A single Engine is shared by every pipe and every tank; each
// ReactPipe/ReactTank call operates on a caller-owned concentration slice, so the
// engine itself holds no per-location state.
type Engine struct {
	specs    []SpeciesSpec
	coupling Coupling

	pipe, tank             zoneClass
	pipeSolver, tankSolver odesolve.Solver
	pipeNewton, tankNewton *newton.Solver
}

// NewEngine classifies specs for both zones and allocates the solvers
// each zone's rate/equilibrium species need.
func NewEngine(specs []SpeciesSpec, kind odesolve.Kind, coupling Coupling) *Engine {
	e := &Engine{specs: specs, coupling: coupling}
	e.pipe = classify(specs, true)
	e.tank = classify(specs, false)
	e.pipeSolver = odesolve.New(kind, len(e.pipe.rate))
	e.tankSolver = odesolve.New(kind, len(e.tank.rate))
	if len(e.pipe.equil) > 0 {
		e.pipeNewton = newton.NewSolver(len(e.pipe.equil))
	}
	if len(e.tank.equil) > 0 {
		e.tankNewton = newton.NewSolver(len(e.tank.equil))
	}
	return e
}

// ReactPipe advances c (length len(specs)) through dt of pipe-zone
// kinetics.
func (e *Engine) ReactPipe(dt float64, c, rtol, atol []float64, rf ResolverFactory) error {
	return e.react(dt, c, rtol, atol, rf, e.pipe, e.pipeSolver, e.pipeNewton, true)
}

// ReactTank advances c (length len(specs)) through dt of tank-zone
// kinetics.
func (e *Engine) ReactTank(dt float64, c, rtol, atol []float64, rf ResolverFactory) error {
	return e.react(dt, c, rtol, atol, rf, e.tank, e.tankSolver, e.tankNewton, false)
}

func (e *Engine) react(dt float64, c, rtol, atol []float64, rf ResolverFactory, zc zoneClass, solver odesolve.Solver, ns *newton.Solver, pipe bool) error {
	if e.coupling == CouplingNone {
		if err := e.solveAlgebraic(c, rf, zc, ns, pipe); err != nil {
			return err
		}
	}

	if len(zc.rate) > 0 {
		y := make([]float64, len(zc.rate))
		yr := make([]float64, len(zc.rate))
		ya := make([]float64, len(zc.rate))
		for i, si := range zc.rate {
			y[i] = c[si]
			yr[i] = rtol[si]
			ya[i] = atol[si]
		}

		deriv := func(t float64, yv, dst []float64) error {
			for i, si := range zc.rate {
				c[si] = yv[i]
			}
			if e.coupling == CouplingFull {
				if err := e.solveAlgebraic(c, rf, zc, ns, pipe); err != nil {
					return err
				}
			}
			res := rf(c)
			for i, si := range zc.rate {
				v, err := e.specs[si].expr(pipe).Eval(res)
				if err != nil {
					return err
				}
				dst[i] = v
			}
			return nil
		}

		tNow, h0 := 0.0, dt
		for tNow < dt {
			h, err := solver.Step(tNow, dt, y, yr, ya, h0, deriv)
			if err != nil {
				return err
			}
			tNow += h
			h0 = h
		}
		for i, si := range zc.rate {
			c[si] = y[i]
		}
	}

	return e.solveAlgebraic(c, rf, zc, ns, pipe)
}

// solveAlgebraic evaluates every formula species directly and solves
// every equilibrium species' residual to convergence via Newton
// iteration, both against the current snapshot of c.
func (e *Engine) solveAlgebraic(c []float64, rf ResolverFactory, zc zoneClass, ns *newton.Solver, pipe bool) error {
	for _, si := range zc.formula {
		res := rf(c)
		v, err := e.specs[si].expr(pipe).Eval(res)
		if err != nil {
			return err
		}
		c[si] = v
	}

	if len(zc.equil) == 0 {
		return nil
	}

	x := make([]float64, len(zc.equil))
	for i, si := range zc.equil {
		x[i] = c[si]
	}
	resid := func(t float64, xv, dst []float64) error {
		for i, si := range zc.equil {
			c[si] = xv[i]
		}
		res := rf(c)
		for i, si := range zc.equil {
			v, err := e.specs[si].expr(pipe).Eval(res)
			if err != nil {
				return err
			}
			dst[i] = v
		}
		return nil
	}
	if err := ns.Solve(0, x, resid); err != nil {
		return err
	}
	for i, si := range zc.equil {
		c[si] = x[i]
	}
	return nil
}
